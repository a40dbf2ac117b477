package generator

import "strconv"

// ModuleDescriptor is one output module: every artifact of a tag, in the
// order operations were processed.
type ModuleDescriptor struct {
	Tag       string
	Package   string
	Artifacts []FunctionArtifact

	NeedsURL     bool
	NeedsStrings bool
}

// Aggregator buckets artifacts by tag. Tags keep first-seen order.
type Aggregator struct {
	order    []string
	modules  map[string]*ModuleDescriptor
	packages map[string]struct{}
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		modules:  make(map[string]*ModuleDescriptor),
		packages: make(map[string]struct{}),
	}
}

// Add appends art, then its payload generator, to the bucket of every tag.
// A tag repeated within tags receives the artifact once.
func (a *Aggregator) Add(tags []string, art FunctionArtifact) {
	done := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		if _, ok := done[tag]; ok {
			continue
		}
		done[tag] = struct{}{}

		m := a.module(tag)
		m.Artifacts = append(m.Artifacts, art)
		if art.Payload != nil {
			m.Artifacts = append(m.Artifacts, *art.Payload)
		}
		m.NeedsURL = m.NeedsURL || art.usesURL
		m.NeedsStrings = m.NeedsStrings || art.usesStrings
	}
}

func (a *Aggregator) module(tag string) *ModuleDescriptor {
	if m, ok := a.modules[tag]; ok {
		return m
	}
	pkg := packageName(tag)
	base := pkg
	for i := 2; ; i++ {
		if _, taken := a.packages[pkg]; !taken {
			break
		}
		pkg = base + strconv.Itoa(i)
	}
	a.packages[pkg] = struct{}{}
	m := &ModuleDescriptor{Tag: tag, Package: pkg}
	a.modules[tag] = m
	a.order = append(a.order, tag)
	return m
}

// Modules returns the buckets in first-seen tag order.
func (a *Aggregator) Modules() []*ModuleDescriptor {
	out := make([]*ModuleDescriptor, 0, len(a.order))
	for _, tag := range a.order {
		out = append(out, a.modules[tag])
	}
	return out
}

// Len is the number of tags seen.
func (a *Aggregator) Len() int { return len(a.order) }
