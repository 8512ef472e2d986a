// Package seed loads interview question banks from YAML files into the
// interview repository.
package seed

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

// DefaultPath is the seed file used when none is given.
const DefaultPath = "configs/seed/interviews.yaml"

type seedYAML struct {
	Interviews []interviewYAML `yaml:"interviews"`
}

type interviewYAML struct {
	ID        string            `yaml:"id"`
	Title     string            `yaml:"title"`
	Type      string            `yaml:"type"`
	Round     int               `yaml:"round"`
	Questions []domain.Question `yaml:"questions"`
}

// Load reads and validates a seed file. Interviews without an id get a
// deterministic one derived from the title so re-seeding stays idempotent.
func Load(path string) ([]domain.Interview, error) {
	abs, err := constrain(path)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("seed file not found: %s", path)
		}
		return nil, err
	}
	return Parse(b)
}

// Parse decodes and validates seed YAML.
func Parse(b []byte) ([]domain.Interview, error) {
	var doc seedYAML
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("yaml parse: %w", err)
	}
	if len(doc.Interviews) == 0 {
		return nil, errors.New("no interviews to seed")
	}
	out := make([]domain.Interview, 0, len(doc.Interviews))
	seen := make(map[string]struct{}, len(doc.Interviews))
	for i, it := range doc.Interviews {
		iv, err := it.toDomain()
		if err != nil {
			return nil, fmt.Errorf("interviews[%d]: %w", i, err)
		}
		if _, dup := seen[iv.ID]; dup {
			return nil, fmt.Errorf("interviews[%d]: duplicate id %s", i, iv.ID)
		}
		seen[iv.ID] = struct{}{}
		out = append(out, iv)
	}
	return out, nil
}

func (it interviewYAML) toDomain() (domain.Interview, error) {
	title := strings.TrimSpace(it.Title)
	if title == "" {
		return domain.Interview{}, errors.New("title is required")
	}
	typ, err := domain.ParseInterviewType(it.Type)
	if err != nil {
		return domain.Interview{}, err
	}
	id := strings.TrimSpace(it.ID)
	if id == "" {
		id = uuid.NewSHA1(uuid.NameSpaceURL, []byte("interview:"+title)).String()
	} else if _, err := uuid.Parse(id); err != nil {
		return domain.Interview{}, fmt.Errorf("id %q is not a UUID", id)
	}
	round := it.Round
	if round <= 0 {
		round = 1
	}
	if len(it.Questions) == 0 {
		return domain.Interview{}, errors.New("question bank is empty")
	}
	qids := make(map[string]struct{}, len(it.Questions))
	for j, q := range it.Questions {
		if strings.TrimSpace(q.ID) == "" {
			return domain.Interview{}, fmt.Errorf("questions[%d]: id is required", j)
		}
		if _, dup := qids[q.ID]; dup {
			return domain.Interview{}, fmt.Errorf("questions[%d]: duplicate id %s", j, q.ID)
		}
		qids[q.ID] = struct{}{}
		if typ.IsMCQ() {
			if len(q.Options) < 2 {
				return domain.Interview{}, fmt.Errorf("questions[%d]: mcq needs at least two options", j)
			}
			if _, ok := q.CorrectOptionID(); !ok {
				return domain.Interview{}, fmt.Errorf("questions[%d]: mcq needs exactly one correct option", j)
			}
		}
	}
	return domain.Interview{ID: id, Title: title, Type: typ, RoundNumber: round, Questions: it.Questions}, nil
}

// Apply upserts every interview and returns how many were written.
func Apply(ctx domain.Context, repo domain.InterviewRepository, interviews []domain.Interview) (int, error) {
	n := 0
	for _, iv := range interviews {
		if err := repo.Upsert(ctx, iv); err != nil {
			return n, fmt.Errorf("seed %s: %w", iv.ID, err)
		}
		n++
	}
	return n, nil
}

// constrain keeps seed paths inside the working directory unless
// SEED_ALLOW_ABSPATHS=1.
func constrain(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if os.Getenv("SEED_ALLOW_ABSPATHS") == "1" {
		return abs, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	abs, wd = filepath.Clean(abs), filepath.Clean(wd)
	if !strings.HasPrefix(abs, wd+string(os.PathSeparator)) && abs != wd {
		return "", fmt.Errorf("disallowed path: %s", abs)
	}
	return abs, nil
}
