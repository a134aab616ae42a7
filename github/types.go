// Package github provides webhook validation, GitHub App authentication,
// and the API client used by the reviewer.
package github

// WebhookEnvelope carries one raw webhook delivery: the exact body bytes plus
// the headers that identify and authenticate it. It lives for one request.
type WebhookEnvelope struct {
	Payload   []byte
	EventType string // X-GitHub-Event
	Signature string // X-Hub-Signature-256
}

// EventKind identifies the parsed payload variant of a webhook delivery.
type EventKind string

const (
	EventPullRequest  EventKind = "pull_request"
	EventInstallation EventKind = "installation"
	EventPush         EventKind = "push"
)

// Event is the tagged union produced by parsing a webhook payload. Exactly
// one of the payload fields is non-nil, selected by Kind.
type Event struct {
	Kind         EventKind
	PullRequest  *PullRequestEvent
	Installation *InstallationEvent
	Push         *PushEvent
}

// PullRequestEvent is a pull_request webhook payload.
type PullRequestEvent struct {
	Action       string        `json:"action"`
	Number       int           `json:"number"`
	PullRequest  *PullRequest  `json:"pull_request"`
	Repository   *Repository   `json:"repository"`
	Installation *Installation `json:"installation"`
	Sender       *User         `json:"sender"`
}

// PullRequest describes the pull request under review.
type PullRequest struct {
	ID      int64  `json:"id"`
	Number  int    `json:"number"`
	State   string `json:"state"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	URL     string `json:"url"` // API URL, base for diff retrieval and /reviews
	HTMLURL string `json:"html_url"`
	DiffURL string `json:"diff_url"`
	Head    *Ref   `json:"head"`
	Base    *Ref   `json:"base"`
	User    *User  `json:"user"`
}

// Ref is a git reference (branch/commit).
type Ref struct {
	Ref string `json:"ref"`
	SHA string `json:"sha"`
}

// Repository identifies a GitHub repository.
type Repository struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	Owner    *User  `json:"owner"`
	Private  bool   `json:"private"`
}

// User is a GitHub user or organization.
type User struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Type  string `json:"type"`
}

// Installation identifies a GitHub App installation in event payloads.
type Installation struct {
	ID      int64 `json:"id"`
	Account *User `json:"account,omitempty"`
}

// InstallationEvent is an installation webhook payload (created/deleted).
type InstallationEvent struct {
	Action       string          `json:"action"`
	Installation *Installation   `json:"installation"`
	Repositories []InstalledRepo `json:"repositories,omitempty"`
	Sender       *User           `json:"sender"`
}

// InstalledRepo is a repository entry in an installation payload.
type InstalledRepo struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	Private  bool   `json:"private"`
}

// PushEvent is a push webhook payload. Push handling is accepted but
// unimplemented; only the fields useful for logging are parsed.
type PushEvent struct {
	Ref        string        `json:"ref"`
	After      string        `json:"after"`
	Repository *Repository   `json:"repository"`
	Sender     *User         `json:"sender"`
	Install    *Installation `json:"installation"`
}

// ReviewComment is an inline comment on a specific diff line.
type ReviewComment struct {
	Path string `json:"path"`
	Line int    `json:"line"`
	Side string `json:"side,omitempty"` // LEFT or RIGHT
	Body string `json:"body"`
}

// ReviewRequest is the payload posted to the pull request reviews endpoint.
type ReviewRequest struct {
	CommitID string          `json:"commit_id,omitempty"`
	Body     string          `json:"body"`
	Event    string          `json:"event"` // APPROVE, REQUEST_CHANGES, COMMENT
	Comments []ReviewComment `json:"comments,omitempty"`
}

// tokenResponse is the body of a successful installation token exchange.
type tokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at,omitempty"`
}
