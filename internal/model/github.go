package model

// Repo is the subset of a GitHub repository we expose.
type Repo struct {
	Name     string  `json:"name"`
	FullName string  `json:"full_name"`
	HTMLURL  string  `json:"html_url"`
	Private  bool    `json:"private"`
	Language *string `json:"language"`
}

// Branch mirrors GET /repos/{owner}/{repo}/branches/{branch}.
//
// Every hop to the tree SHA is a pointer: GitHub may omit any of them and
// callers must be able to tell "absent" from "empty".
type Branch struct {
	Name   string        `json:"name"`
	Commit *BranchCommit `json:"commit,omitempty"`
}

type BranchCommit struct {
	SHA    string        `json:"sha,omitempty"`
	Commit *CommitDetail `json:"commit,omitempty"`
}

type CommitDetail struct {
	Tree *TreeRef `json:"tree,omitempty"`
}

type TreeRef struct {
	SHA string `json:"sha"`
}

// TreeSHA walks commit → commit → tree. ok is false when any hop is missing
// or the SHA is empty.
func (b *Branch) TreeSHA() (sha string, ok bool) {
	if b == nil || b.Commit == nil || b.Commit.Commit == nil || b.Commit.Commit.Tree == nil {
		return "", false
	}
	sha = b.Commit.Commit.Tree.SHA
	return sha, sha != ""
}

// Tree entry types returned by the git trees API.
const (
	EntryBlob   = "blob"
	EntryTree   = "tree"
	EntryCommit = "commit"
)

// Tree is a recursive tree listing rooted at SHA.
type Tree struct {
	SHA       string      `json:"sha"`
	Entries   []TreeEntry `json:"tree"`
	Truncated bool        `json:"truncated"`
}

type TreeEntry struct {
	Path string `json:"path"`
	Type string `json:"type"`
	SHA  string `json:"sha"`
}

// Blob is a git blob. Content is base64 when Encoding is "base64".
type Blob struct {
	SHA      string `json:"sha"`
	Size     int64  `json:"size"`
	Encoding string `json:"encoding"`
	Content  string `json:"content"`
}

// Email is one entry of GET /user/emails.
type Email struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}
