package content

// Dataset is the immutable static source of truth: both collections plus
// the version stamp derived from them.
type Dataset struct {
	Sites   []Site
	Terms   []Term
	Version string
}

// NewDataset builds a dataset and computes its version.
func NewDataset(sites []Site, terms []Term) *Dataset {
	return &Dataset{
		Sites:   sites,
		Terms:   terms,
		Version: ComputeVersion(sites, terms),
	}
}
