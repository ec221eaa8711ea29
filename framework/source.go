package framework

// CaseSource supplies test cases one at a time. Next returns false when the
// source is exhausted. The orchestrator drains the source into a schedule
// before running anything, so a source is free to discover cases lazily.
type CaseSource interface {
	Next() (CaseAdapter, bool)
}

// SourceFunc adapts a function to a CaseSource.
type SourceFunc func() (CaseAdapter, bool)

func (f SourceFunc) Next() (CaseAdapter, bool) { return f() }

type caseList struct {
	adapters []CaseAdapter
	pos      int
}

// NewCaseList builds a source from declarative case definitions, in order.
func NewCaseList(cases ...*Case) CaseSource {
	adapters := make([]CaseAdapter, 0, len(cases))
	for _, c := range cases {
		adapters = append(adapters, c.Adapter())
	}
	return &caseList{adapters: adapters}
}

// NewAdapterSource builds a source from adapters, in order.
func NewAdapterSource(adapters ...CaseAdapter) CaseSource {
	return &caseList{adapters: adapters}
}

func (l *caseList) Next() (CaseAdapter, bool) {
	if l.pos >= len(l.adapters) {
		return nil, false
	}
	a := l.adapters[l.pos]
	l.pos++
	return a, true
}
