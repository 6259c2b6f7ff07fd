// Package archive keeps the text of every document version in a per-document
// git repository, so that changelogs can carry a real unified diff.
package archive

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const contentFile = "content.txt"

var ErrVersionNotArchived = errors.New("archive: version not recorded")

type Service struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[int64]*sync.Mutex
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		locks:   make(map[int64]*sync.Mutex),
	}
}

// Record commits the text of a version and points tag v<N> at it. Recording
// the same version again moves the tag.
func (s *Service) Record(documentID int64, versionNumber int, text, author string) (string, error) {
	lock := s.documentLock(documentID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.openOrInit(documentID)
	if err != nil {
		return "", err
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("open worktree: %w", err)
	}

	if err := os.WriteFile(filepath.Join(s.repoPath(documentID), contentFile), []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("write version text: %w", err)
	}
	if _, err := worktree.Add(contentFile); err != nil {
		return "", fmt.Errorf("git add version text: %w", err)
	}
	hash, err := worktree.Commit(fmt.Sprintf("Version %d", versionNumber), &git.CommitOptions{
		Author: &object.Signature{
			Name:  author,
			Email: fmt.Sprintf("%s@doccontrol.local", sanitizeEmail(author)),
			When:  time.Now(),
		},
		AllowEmptyCommits: true,
	})
	if err != nil {
		return "", fmt.Errorf("commit version %d: %w", versionNumber, err)
	}

	tag := plumbing.NewTagReferenceName(tagName(versionNumber))
	if err := repo.Storer.SetReference(plumbing.NewHashReference(tag, hash)); err != nil {
		return "", fmt.Errorf("tag version %d: %w", versionNumber, err)
	}
	return hash.String(), nil
}

// Text returns the archived text of a version.
func (s *Service) Text(documentID int64, versionNumber int) (string, error) {
	lock := s.documentLock(documentID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(documentID))
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return "", ErrVersionNotArchived
	}
	if err != nil {
		return "", fmt.Errorf("open repo: %w", err)
	}
	commit, err := versionCommit(repo, versionNumber)
	if err != nil {
		return "", err
	}
	return readContent(commit)
}

// Patch returns the unified diff between two recorded versions.
func (s *Service) Patch(documentID int64, fromVersion, toVersion int) (string, error) {
	lock := s.documentLock(documentID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(documentID))
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return "", ErrVersionNotArchived
	}
	if err != nil {
		return "", fmt.Errorf("open repo: %w", err)
	}

	from, err := versionCommit(repo, fromVersion)
	if err != nil {
		return "", err
	}
	to, err := versionCommit(repo, toVersion)
	if err != nil {
		return "", err
	}
	patch, err := from.Patch(to)
	if err != nil {
		return "", fmt.Errorf("diff v%d..v%d: %w", fromVersion, toVersion, err)
	}
	return patch.String(), nil
}

func (s *Service) openOrInit(documentID int64) (*git.Repository, error) {
	path := s.repoPath(documentID)
	repo, err := git.PlainOpen(path)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("open repo: %w", err)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err = git.PlainInit(path, false)
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("main"))); err != nil {
		return nil, fmt.Errorf("set HEAD to main: %w", err)
	}
	return repo, nil
}

func versionCommit(repo *git.Repository, versionNumber int) (*object.Commit, error) {
	ref, err := repo.Reference(plumbing.NewTagReferenceName(tagName(versionNumber)), true)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil, fmt.Errorf("v%d: %w", versionNumber, ErrVersionNotArchived)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve v%d: %w", versionNumber, err)
	}
	commit, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("load commit for v%d: %w", versionNumber, err)
	}
	return commit, nil
}

func readContent(commit *object.Commit) (string, error) {
	file, err := commit.File(contentFile)
	if err != nil {
		return "", fmt.Errorf("load %s from commit: %w", contentFile, err)
	}
	reader, err := file.Reader()
	if err != nil {
		return "", fmt.Errorf("open content reader: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read content: %w", err)
	}
	return string(raw), nil
}

func tagName(versionNumber int) string {
	return "v" + strconv.Itoa(versionNumber)
}

func (s *Service) repoPath(documentID int64) string {
	return filepath.Join(s.baseDir, "doc-"+strconv.FormatInt(documentID, 10))
}

func (s *Service) documentLock(documentID int64) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[documentID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[documentID] = lock
	}
	return lock
}

func sanitizeEmail(input string) string {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out = append(out, r)
			continue
		}
		if r == ' ' || r == '-' || r == '_' {
			out = append(out, '.')
		}
	}
	if len(out) == 0 {
		return "user"
	}
	return string(out)
}
