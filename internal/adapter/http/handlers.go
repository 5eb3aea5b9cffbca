package http

import (
	"net/http"

	"github.com/agent-orchestrator/core/internal/domain/agent"
	"github.com/agent-orchestrator/core/internal/domain/skill"
	"github.com/agent-orchestrator/core/internal/port/gitprovider"
	"github.com/agent-orchestrator/core/internal/service"
)

// bodyLimit caps JSON request bodies. Push requests carry file contents, so
// the limit is generous.
const bodyLimit = 4 << 20

// Handlers bundles the services the HTTP API fronts.
type Handlers struct {
	Registry    *service.Registry
	Providers   *service.ProviderService
	Marketplace *service.MarketplaceService
	Agents      *service.AgentService
	Skills      *service.SkillService
}

// --- Providers ------------------------------------------------------------

// ListProviders returns static metadata for every provider.
func (h *Handlers) ListProviders(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Registry.Infos())
}

// ListAccounts returns the authenticated user per connected provider.
func (h *Handlers) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.Providers.Accounts(r.Context())
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

// SetClientID stores the OAuth app client ID for a provider.
func (h *Handlers) SetClientID(w http.ResponseWriter, r *http.Request) {
	t, ok := providerParam(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[struct {
		ClientID string `json:"client_id"`
	}](w, r, bodyLimit)
	if !ok {
		return
	}
	if !requireField(w, req.ClientID, "client_id") {
		return
	}
	if err := h.Registry.SetClientID(t, req.ClientID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetBaseURL changes a provider's instance URL (GitLab only).
func (h *Handlers) SetBaseURL(w http.ResponseWriter, r *http.Request) {
	t, ok := providerParam(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[struct {
		BaseURL string `json:"base_url"`
	}](w, r, bodyLimit)
	if !ok {
		return
	}
	if !requireField(w, req.BaseURL, "base_url") {
		return
	}
	if err := h.Registry.SetBaseURL(t, req.BaseURL); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StartDeviceFlow begins OAuth device authorization.
func (h *Handlers) StartDeviceFlow(w http.ResponseWriter, r *http.Request) {
	t, ok := providerParam(w, r)
	if !ok {
		return
	}
	auth, err := h.Providers.StartDeviceFlow(r.Context(), t)
	if err != nil {
		writeDomainError(w, err, "device flow unavailable")
		return
	}
	writeJSON(w, http.StatusOK, auth)
}

// CompleteDeviceFlow polls for authorization and connects the account. The
// request blocks until the user approves, denies, or the code expires.
func (h *Handlers) CompleteDeviceFlow(w http.ResponseWriter, r *http.Request) {
	t, ok := providerParam(w, r)
	if !ok {
		return
	}
	auth, ok := readJSON[gitprovider.DeviceAuth](w, r, bodyLimit)
	if !ok {
		return
	}
	if !requireField(w, auth.DeviceCode, "device_code") {
		return
	}
	user, err := h.Providers.CompleteDeviceFlow(r.Context(), t, &auth)
	if err != nil {
		writeDomainError(w, err, "authorization failed")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Connect validates a credential and connects the account. A token alone is
// a personal access token; username plus password is an app password pair.
func (h *Handlers) Connect(w http.ResponseWriter, r *http.Request) {
	t, ok := providerParam(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[struct {
		Token       string `json:"token,omitempty"`
		Username    string `json:"username,omitempty"`
		AppPassword string `json:"app_password,omitempty"`
	}](w, r, bodyLimit)
	if !ok {
		return
	}

	var (
		user *gitprovider.User
		err  error
	)
	if req.Username != "" {
		user, err = h.Providers.ConnectWithAppPassword(r.Context(), t, req.Username, req.AppPassword)
	} else {
		if !requireField(w, req.Token, "token") {
			return
		}
		user, err = h.Providers.ConnectWithToken(r.Context(), t, req.Token)
	}
	if err != nil {
		writeDomainError(w, err, "connection failed")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Disconnect removes the stored credential for a provider.
func (h *Handlers) Disconnect(w http.ResponseWriter, r *http.Request) {
	t, ok := providerParam(w, r)
	if !ok {
		return
	}
	if err := h.Providers.Disconnect(r.Context(), t); err != nil {
		writeInternalError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListRepos lists repositories reachable by the connected account.
func (h *Handlers) ListRepos(w http.ResponseWriter, r *http.Request) {
	t, ok := providerParam(w, r)
	if !ok {
		return
	}
	repos, err := h.Providers.ListRepositories(r.Context(), t)
	if err != nil {
		writeDomainError(w, err, "repositories unavailable")
		return
	}
	writeJSON(w, http.StatusOK, repos)
}

// PushFiles pushes files to a branch in one commit.
func (h *Handlers) PushFiles(w http.ResponseWriter, r *http.Request) {
	t, ok := providerParam(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[struct {
		Owner         string                  `json:"owner"`
		Repo          string                  `json:"repo"`
		BaseBranch    string                  `json:"base_branch"`
		NewBranch     string                  `json:"new_branch"`
		CommitMessage string                  `json:"commit_message"`
		Files         []gitprovider.FileEntry `json:"files"`
	}](w, r, bodyLimit)
	if !ok {
		return
	}
	for _, f := range []struct{ v, name string }{
		{req.Owner, "owner"}, {req.Repo, "repo"},
		{req.BaseBranch, "base_branch"}, {req.NewBranch, "new_branch"},
	} {
		if !requireField(w, f.v, f.name) {
			return
		}
	}
	if len(req.Files) == 0 {
		writeError(w, http.StatusBadRequest, "files is required")
		return
	}

	err := h.Providers.PushFiles(r.Context(), t, req.Owner, req.Repo, req.BaseBranch, req.NewBranch, req.Files, req.CommitMessage)
	if err != nil {
		writeDomainError(w, err, "push failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreatePullRequest opens a pull or merge request.
func (h *Handlers) CreatePullRequest(w http.ResponseWriter, r *http.Request) {
	t, ok := providerParam(w, r)
	if !ok {
		return
	}
	opts, ok := readJSON[gitprovider.PROptions](w, r, bodyLimit)
	if !ok {
		return
	}
	for _, f := range []struct{ v, name string }{
		{opts.Owner, "owner"}, {opts.Repo, "repo"},
		{opts.Head, "head"}, {opts.Base, "base"},
	} {
		if !requireField(w, f.v, f.name) {
			return
		}
	}

	pr, err := h.Providers.CreatePullRequest(r.Context(), t, opts)
	if err != nil {
		writeDomainError(w, err, "pull request failed")
		return
	}
	writeJSON(w, http.StatusCreated, pr)
}

// --- Marketplace ----------------------------------------------------------

// ListSnippets lists marketplace snippets for a provider.
func (h *Handlers) ListSnippets(w http.ResponseWriter, r *http.Request) {
	t, ok := providerParam(w, r)
	if !ok {
		return
	}
	snippets, err := h.Marketplace.ListSnippets(r.Context(), t)
	if err != nil {
		writeDomainError(w, err, "marketplace unavailable")
		return
	}
	writeJSON(w, http.StatusOK, snippets)
}

// GetSnippet fetches a single marketplace snippet.
func (h *Handlers) GetSnippet(w http.ResponseWriter, r *http.Request) {
	t, ok := providerParam(w, r)
	if !ok {
		return
	}
	snippet, err := h.Marketplace.GetSnippet(r.Context(), t, urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "snippet not found")
		return
	}
	writeJSON(w, http.StatusOK, snippet)
}

// PublishSkill exports a local skill to a provider marketplace.
func (h *Handlers) PublishSkill(w http.ResponseWriter, r *http.Request) {
	t, ok := providerParam(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[struct {
		SkillID string `json:"skill_id"`
		Public  bool   `json:"public"`
	}](w, r, bodyLimit)
	if !ok {
		return
	}
	if !requireField(w, req.SkillID, "skill_id") {
		return
	}
	snippet, err := h.Marketplace.PublishSkill(r.Context(), t, req.SkillID, req.Public)
	if err != nil {
		writeDomainError(w, err, "skill not found")
		return
	}
	writeJSON(w, http.StatusCreated, snippet)
}

// ImportSnippet imports a marketplace snippet as a local skill.
func (h *Handlers) ImportSnippet(w http.ResponseWriter, r *http.Request) {
	t, ok := providerParam(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[struct {
		SnippetID string `json:"snippet_id"`
	}](w, r, bodyLimit)
	if !ok {
		return
	}
	if !requireField(w, req.SnippetID, "snippet_id") {
		return
	}
	imported, err := h.Marketplace.ImportSnippet(r.Context(), t, req.SnippetID)
	if err != nil {
		writeDomainError(w, err, "snippet not found")
		return
	}
	writeJSON(w, http.StatusCreated, imported)
}

// --- Agents ---------------------------------------------------------------

func (h *Handlers) ListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.Agents.List(r.Context())
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, agents)
}

func (h *Handlers) CreateAgent(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[agent.CreateRequest](w, r, bodyLimit)
	if !ok {
		return
	}
	created, err := h.Agents.Create(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "agent not created")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handlers) GetAgent(w http.ResponseWriter, r *http.Request) {
	a, err := h.Agents.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handlers) UpdateAgent(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[agent.UpdateRequest](w, r, bodyLimit)
	if !ok {
		return
	}
	updated, err := h.Agents.Update(r.Context(), urlParam(r, "id"), req)
	if err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handlers) DeleteAgent(w http.ResponseWriter, r *http.Request) {
	if err := h.Agents.Delete(r.Context(), urlParam(r, "id")); err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Skills ---------------------------------------------------------------

func (h *Handlers) ListSkills(w http.ResponseWriter, r *http.Request) {
	skills, err := h.Skills.List(r.Context())
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, skills)
}

func (h *Handlers) CreateSkill(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[skill.CreateRequest](w, r, bodyLimit)
	if !ok {
		return
	}
	created, err := h.Skills.Create(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "skill not created")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handlers) GetSkill(w http.ResponseWriter, r *http.Request) {
	sk, err := h.Skills.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "skill not found")
		return
	}
	writeJSON(w, http.StatusOK, sk)
}

func (h *Handlers) UpdateSkill(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[skill.UpdateRequest](w, r, bodyLimit)
	if !ok {
		return
	}
	updated, err := h.Skills.Update(r.Context(), urlParam(r, "id"), req)
	if err != nil {
		writeDomainError(w, err, "skill not found")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handlers) DeleteSkill(w http.ResponseWriter, r *http.Request) {
	if err := h.Skills.Delete(r.Context(), urlParam(r, "id")); err != nil {
		writeDomainError(w, err, "skill not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
