package httpserver

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

func TestDecodeJSON(t *testing.T) {
	cases := []struct {
		name      string
		body      string
		wantField string
		wantIndex int
	}{
		{"empty body", "", "body", -1},
		{"malformed", "{", "body", -1},
		{"missing email", `{"answers":[{"questionId":"q1"}]}`, "candidateEmail", -1},
		{"bad email", `{"candidateEmail":"nope","answers":[{"questionId":"q1"}]}`, "candidateEmail", -1},
		{"no answers", `{"candidateEmail":"a@b.co","answers":[]}`, "answers", -1},
		{"indexed answer", `{"candidateEmail":"a@b.co","answers":[{"questionId":"q1"},{"questionId":"q2","timeSpent":-1}]}`, "timeSpent", 1},
		{"confidence range", `{"candidateEmail":"a@b.co","answers":[{"questionId":"q1","confidence":1.5}]}`, "confidence", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			var req submitRequest
			err := decodeJSON(httptest.NewRecorder(), r, &req)
			var ve *domain.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("want ValidationError, got %v", err)
			}
			if ve.Field != tc.wantField || ve.Index != tc.wantIndex {
				t.Fatalf("got field=%s index=%d", ve.Field, ve.Index)
			}
			if !errors.Is(err, domain.ErrInvalidArgument) {
				t.Fatalf("should match ErrInvalidArgument")
			}
		})
	}
}

func TestDecodeJSON_Valid(t *testing.T) {
	body := `{"candidateEmail":"a@b.co","candidateName":"A B","totalTimeSpent":90,"answers":[{"questionId":"q1","answer":"x","timeSpent":30,"confidence":0.5}]}`
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	var req submitRequest
	if err := decodeJSON(httptest.NewRecorder(), r, &req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(req.Answers) != 1 || *req.Answers[0].Confidence != 0.5 || req.TotalTimeSpent != 90 {
		t.Fatalf("decoded %+v", req)
	}
}

func TestDecodeJSON_TooLarge(t *testing.T) {
	big := `{"candidateEmail":"` + strings.Repeat("a", maxJSONBody) + `"}`
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(big))
	var req submitRequest
	err := decodeJSON(httptest.NewRecorder(), r, &req)
	var ve *domain.ValidationError
	if !errors.As(err, &ve) || ve.Field != "body" {
		t.Fatalf("want body ValidationError, got %v", err)
	}
}
