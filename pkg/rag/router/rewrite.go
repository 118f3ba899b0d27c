package router

import (
	"strings"
	"unicode"
)

// RewritePolicy is a deterministic post-pass over the model's search
// query: abbreviations are expanded and filler words dropped so the
// vector search sees stable keywords regardless of how the model phrased
// its reply.
type RewritePolicy struct {
	Stopwords     map[string]struct{}
	Abbreviations map[string]string
}

// DefaultRewritePolicy ships the academic vocabulary the corpus uses.
func DefaultRewritePolicy() RewritePolicy {
	stop := []string{
		"apa", "apakah", "bagaimana", "gimana", "berapa", "kapan",
		"siapa", "dimana", "mana", "kenapa", "mengapa",
		"yang", "untuk", "dari", "ke", "di", "pada",
		"itu", "ini", "adalah", "ada", "bisa", "dapat", "boleh",
		"saja", "aja", "dong", "ya", "sih", "kah",
		"tolong", "mohon", "minta",
	}
	stopwords := make(map[string]struct{}, len(stop))
	for _, w := range stop {
		stopwords[w] = struct{}{}
	}
	return RewritePolicy{
		Stopwords: stopwords,
		Abbreviations: map[string]string{
			"matkul":  "mata kuliah",
			"kp":      "kerja praktik",
			"ta":      "tugas akhir",
			"krs":     "kartu rencana studi",
			"dosbing": "dosen pembimbing",
			"maba":    "mahasiswa baru",
			"s1":      "sarjana",
			"s2":      "magister",
			"s3":      "doktor",
		},
	}
}

// Apply rewrites q token by token. When every token is a stopword the
// original query is returned so the search never runs on an empty string.
func (p RewritePolicy) Apply(q string) string {
	fields := strings.FieldsFunc(q, func(r rune) bool {
		return unicode.IsSpace(r) || r == '?' || r == '!' || r == ',' || r == '.'
	})

	kept := make([]string, 0, len(fields))
	for _, f := range fields {
		lower := strings.ToLower(f)
		if expanded, ok := p.Abbreviations[lower]; ok {
			kept = append(kept, expanded)
			continue
		}
		if _, ok := p.Stopwords[lower]; ok {
			continue
		}
		kept = append(kept, f)
	}

	if len(kept) == 0 {
		return strings.TrimSpace(q)
	}
	return strings.Join(kept, " ")
}
