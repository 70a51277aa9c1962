package extract

import (
	"github.com/ridge/alluvium/chain"
)

type filtered struct {
	inner   Extractor
	allowed map[string]bool
}

// Allowlist restricts extractors to the given output tables: records destined
// for any other table are dropped before they reach the pipeline. An empty
// list keeps everything.
//
// Checkpoints still advance over transactions whose records were all
// filtered, the same as over transactions that produced none.
func Allowlist(extractors []Extractor, tables []string) []Extractor {
	if len(tables) == 0 {
		return extractors
	}
	allowed := make(map[string]bool, len(tables))
	for _, name := range tables {
		allowed[name] = true
	}
	out := make([]Extractor, len(extractors))
	for i, ex := range extractors {
		out[i] = filtered{inner: ex, allowed: allowed}
	}
	return out
}

func (f filtered) Name() string {
	return f.inner.Name()
}

func (f filtered) Extract(txn *chain.Transaction) ([]Record, error) {
	records, err := f.inner.Extract(txn)
	if err != nil || len(records) == 0 {
		return records, err
	}
	kept := records[:0]
	for _, rec := range records {
		if f.allowed[rec.Table] {
			kept = append(kept, rec)
		}
	}
	return kept, nil
}
