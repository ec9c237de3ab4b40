package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/sakif/coderover/internal/apperror"
	"github.com/sakif/coderover/internal/github"
	"github.com/sakif/coderover/internal/model"
)

// Gateway is the slice of the GitHub client RepositoryService drives.
type Gateway interface {
	ListUserRepos(ctx context.Context, token string, opts github.ListOptions) ([]model.Repo, error)
	GetBranch(ctx context.Context, token, owner, repo, branch string) (*model.Branch, error)
	ListBranches(ctx context.Context, token, owner, repo string) ([]model.Branch, error)
	GetTree(ctx context.Context, token, owner, repo, sha string) (*model.Tree, error)
	GetBlob(ctx context.Context, token, owner, repo, sha string) (*model.Blob, error)
}

// RepositoryService walks branch → commit → tree → blob on the user's
// behalf.
//
// Every failure, including a branch payload without a tree SHA, leaves this
// service as an apperror.ErrGateway; callers never see *github.StatusError.
type RepositoryService struct {
	gw       Gateway
	language string
	logger   *slog.Logger
}

// NewRepositoryService keeps only repositories whose primary language equals
// language, ignoring case.
func NewRepositoryService(gw Gateway, language string, logger *slog.Logger) *RepositoryService {
	return &RepositoryService{gw: gw, language: language, logger: logger}
}

// ListRepos returns the user's repositories written in the configured
// language. No match is an empty, non-nil slice.
func (s *RepositoryService) ListRepos(ctx context.Context, token string, opts github.ListOptions) ([]model.Repo, error) {
	repos, err := s.gw.ListUserRepos(ctx, token, opts)
	if err != nil {
		return nil, s.fail("Failed to fetch user repositories", err)
	}

	out := make([]model.Repo, 0, len(repos))
	for _, r := range repos {
		if r.Language != nil && strings.EqualFold(*r.Language, s.language) {
			out = append(out, r)
		}
	}
	return out, nil
}

// GetTree resolves branch to its tree SHA and lists that tree recursively.
// The tree call is skipped when the branch payload has no tree SHA.
func (s *RepositoryService) GetTree(ctx context.Context, token, owner, repo, branch string) (*model.Tree, error) {
	tree, err := s.getTree(ctx, token, owner, repo, branch)
	if err != nil {
		return nil, s.fail("Failed to fetch repo tree", err)
	}
	return tree, nil
}

func (s *RepositoryService) getTree(ctx context.Context, token, owner, repo, branch string) (*model.Tree, error) {
	b, err := s.gw.GetBranch(ctx, token, owner, repo, branch)
	if err != nil {
		return nil, err
	}
	sha, ok := b.TreeSHA()
	if !ok {
		return nil, apperror.MissingTreeSha()
	}
	return s.gw.GetTree(ctx, token, owner, repo, sha)
}

// GetBlob returns one file blob with its content encoded as GitHub sent it.
func (s *RepositoryService) GetBlob(ctx context.Context, token, owner, repo, sha string) (*model.Blob, error) {
	blob, err := s.gw.GetBlob(ctx, token, owner, repo, sha)
	if err != nil {
		return nil, s.fail("Failed to fetch file blob", err)
	}
	return blob, nil
}

// GetBranch returns a single branch with its head commit.
func (s *RepositoryService) GetBranch(ctx context.Context, token, owner, repo, branch string) (*model.Branch, error) {
	b, err := s.gw.GetBranch(ctx, token, owner, repo, branch)
	if err != nil {
		return nil, s.fail("Failed to fetch branch details", err)
	}
	return b, nil
}

// ListBranches returns every branch of owner/repo.
func (s *RepositoryService) ListBranches(ctx context.Context, token, owner, repo string) ([]model.Branch, error) {
	branches, err := s.gw.ListBranches(ctx, token, owner, repo)
	if err != nil {
		return nil, s.fail("Failed to fetch branches", err)
	}
	if branches == nil {
		branches = []model.Branch{}
	}
	return branches, nil
}

func (s *RepositoryService) fail(action string, err error) error {
	s.logger.Error("github call failed", slog.String("action", action), slog.Any("error", err))
	return apperror.Gateway(action, err)
}
