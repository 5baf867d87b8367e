package questions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

var (
	// ErrChapterNotFound means neither the local directory nor the remote
	// base yielded a file for the chapter.
	ErrChapterNotFound = errors.New("chapter not found")
	// ErrRemoteFetch wraps a non-success HTTP status from the remote base.
	ErrRemoteFetch = errors.New("remote chapter fetch failed")
)

type Option struct {
	Text        string `json:"text"`
	Correct     bool   `json:"correct"`
	Explanation string `json:"explanation"`
}

type Question struct {
	ID       int      `json:"id"`
	Question string   `json:"question"`
	Options  []Option `json:"options"`
}

// Store loads chapter question sets. Every Load re-reads from source: the
// banks are small and stay editable without a restart, so no caching.
type Store struct {
	dir        string
	remoteBase string
	httpClient *http.Client
}

// NewStore creates a store reading from dir first, with remoteBase (already
// normalized to end in "/", or empty) as the HTTP fallback.
func NewStore(dir, remoteBase string) *Store {
	return &Store{
		dir:        dir,
		remoteBase: remoteBase,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Load returns the chapter's questions in file order.
func (s *Store) Load(ctx context.Context, chapter string) ([]Question, error) {
	local := filepath.Join(s.dir, chapter+".json")
	if data, err := os.ReadFile(local); err == nil {
		return parseChapter(chapter, data)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read chapter file %s: %w", local, err)
	}

	if s.remoteBase == "" {
		return nil, fmt.Errorf("%w: %q has no local file and no remote base is configured", ErrChapterNotFound, chapter)
	}
	return s.fetchRemote(ctx, chapter)
}

func (s *Store) fetchRemote(ctx context.Context, chapter string) ([]Question, error) {
	url := s.remoteBase + chapter + ".json"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create chapter request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch chapter %q: %w", chapter, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %q not found at %s", ErrChapterNotFound, chapter, url)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d for %s", ErrRemoteFetch, resp.StatusCode, url)
	}

	var parsed []Question
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode chapter %q: %w", chapter, err)
	}
	return validateChapter(chapter, parsed)
}

func parseChapter(chapter string, data []byte) ([]Question, error) {
	var parsed []Question
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("decode chapter %q: %w", chapter, err)
	}
	return validateChapter(chapter, parsed)
}

// validateChapter rejects structurally unusable questions up front instead of
// failing later while rendering. Optional fields keep their zero defaults.
func validateChapter(chapter string, qs []Question) ([]Question, error) {
	if len(qs) == 0 {
		return nil, fmt.Errorf("chapter %q has no questions", chapter)
	}
	for i, q := range qs {
		if strings.TrimSpace(q.Question) == "" {
			return nil, fmt.Errorf("chapter %q: question %d has no text", chapter, i)
		}
		if len(q.Options) == 0 {
			return nil, fmt.Errorf("chapter %q: question %d has no options", chapter, i)
		}
		for j, opt := range q.Options {
			if strings.TrimSpace(opt.Text) == "" {
				return nil, fmt.Errorf("chapter %q: question %d option %d has no text", chapter, i, j)
			}
		}
	}
	return qs, nil
}

// DiscoverChapters lists the chapter names available in dir, sorted by name.
// A missing directory is not an error, it just yields no chapters.
func DiscoverChapters(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read questions dir: %w", err)
	}

	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		out = append(out, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(out)
	return out, nil
}
