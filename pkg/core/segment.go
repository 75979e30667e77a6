package core

// Segment marks boolean cohort membership. It has the same shape as a
// metric but its select expression must evaluate to a boolean per client.
type Segment struct {
	Slug             string
	DataSource       string
	SelectExpression string
	FriendlyName     string
	Description      string
}

// SegmentDataSource is a data source scoped to segment computation. Unlike
// a metric data source it declares no joins.
type SegmentDataSource struct {
	Slug                 string
	FromExpression       string
	ClientIDColumn       string
	SubmissionDateColumn string
}

// SegmentDefinition is the authored form of a Segment.
type SegmentDefinition struct {
	DataSource       *string `koanf:"data_source"`
	SelectExpression *string `koanf:"select_expression"`
	FriendlyName     *string `koanf:"friendly_name"`
	Description      *string `koanf:"description"`
	Disabled         bool    `koanf:"disabled"`
}

// Clone returns a deep copy.
func (s *SegmentDefinition) Clone() *SegmentDefinition {
	if s == nil {
		return nil
	}
	return &SegmentDefinition{
		DataSource:       cloneString(s.DataSource),
		SelectExpression: cloneString(s.SelectExpression),
		FriendlyName:     cloneString(s.FriendlyName),
		Description:      cloneString(s.Description),
		Disabled:         s.Disabled,
	}
}

// Merge overlays fields explicitly present in other onto s.
func (s *SegmentDefinition) Merge(other *SegmentDefinition) {
	if other == nil {
		return
	}
	if other.DataSource != nil {
		s.DataSource = other.DataSource
	}
	if other.SelectExpression != nil {
		s.SelectExpression = other.SelectExpression
	}
	if other.FriendlyName != nil {
		s.FriendlyName = other.FriendlyName
	}
	if other.Description != nil {
		s.Description = other.Description
	}
}

// Resolve produces the record for slug.
func (s *SegmentDefinition) Resolve(slug string) (Segment, error) {
	seg := Segment{Slug: slug}
	if s.DataSource != nil {
		seg.DataSource = *s.DataSource
	}
	if s.SelectExpression != nil {
		seg.SelectExpression = *s.SelectExpression
	}
	if s.FriendlyName != nil {
		seg.FriendlyName = *s.FriendlyName
	}
	if s.Description != nil {
		seg.Description = *s.Description
	}
	return seg, nil
}

// SegmentDataSourceDefinition is the authored form of a SegmentDataSource.
type SegmentDataSourceDefinition struct {
	FromExpression       *string `koanf:"from_expression"`
	ClientIDColumn       *string `koanf:"client_id_column"`
	SubmissionDateColumn *string `koanf:"submission_date_column"`
	Disabled             bool    `koanf:"disabled"`
}

// Clone returns a deep copy.
func (s *SegmentDataSourceDefinition) Clone() *SegmentDataSourceDefinition {
	if s == nil {
		return nil
	}
	return &SegmentDataSourceDefinition{
		FromExpression:       cloneString(s.FromExpression),
		ClientIDColumn:       cloneString(s.ClientIDColumn),
		SubmissionDateColumn: cloneString(s.SubmissionDateColumn),
		Disabled:             s.Disabled,
	}
}

// Merge overlays fields explicitly present in other onto s.
func (s *SegmentDataSourceDefinition) Merge(other *SegmentDataSourceDefinition) {
	if other == nil {
		return
	}
	if other.FromExpression != nil {
		s.FromExpression = other.FromExpression
	}
	if other.ClientIDColumn != nil {
		s.ClientIDColumn = other.ClientIDColumn
	}
	if other.SubmissionDateColumn != nil {
		s.SubmissionDateColumn = other.SubmissionDateColumn
	}
}

// Resolve produces the fully-defaulted record for slug.
func (s *SegmentDataSourceDefinition) Resolve(slug string) (SegmentDataSource, error) {
	sds := SegmentDataSource{
		Slug:                 slug,
		ClientIDColumn:       DefaultClientIDColumn,
		SubmissionDateColumn: DefaultSubmissionDateColumn,
	}
	if s.FromExpression != nil {
		sds.FromExpression = *s.FromExpression
	}
	if s.ClientIDColumn != nil {
		sds.ClientIDColumn = *s.ClientIDColumn
	}
	if s.SubmissionDateColumn != nil {
		sds.SubmissionDateColumn = *s.SubmissionDateColumn
	}
	return sds, nil
}

// Dimension is a grouping expression that generated queries may expose and
// join on.
type Dimension struct {
	Slug             string
	DataSource       string
	SelectExpression string
	FriendlyName     string
}

// DimensionDefinition is the authored form of a Dimension.
type DimensionDefinition struct {
	DataSource       *string `koanf:"data_source"`
	SelectExpression *string `koanf:"select_expression"`
	FriendlyName     *string `koanf:"friendly_name"`
	Disabled         bool    `koanf:"disabled"`
}

// Clone returns a deep copy.
func (d *DimensionDefinition) Clone() *DimensionDefinition {
	if d == nil {
		return nil
	}
	return &DimensionDefinition{
		DataSource:       cloneString(d.DataSource),
		SelectExpression: cloneString(d.SelectExpression),
		FriendlyName:     cloneString(d.FriendlyName),
		Disabled:         d.Disabled,
	}
}

// Merge overlays fields explicitly present in other onto d.
func (d *DimensionDefinition) Merge(other *DimensionDefinition) {
	if other == nil {
		return
	}
	if other.DataSource != nil {
		d.DataSource = other.DataSource
	}
	if other.SelectExpression != nil {
		d.SelectExpression = other.SelectExpression
	}
	if other.FriendlyName != nil {
		d.FriendlyName = other.FriendlyName
	}
}

// Resolve produces the record for slug.
func (d *DimensionDefinition) Resolve(slug string) (Dimension, error) {
	dim := Dimension{Slug: slug}
	if d.DataSource != nil {
		dim.DataSource = *d.DataSource
	}
	if d.SelectExpression != nil {
		dim.SelectExpression = *d.SelectExpression
	}
	if d.FriendlyName != nil {
		dim.FriendlyName = *d.FriendlyName
	}
	return dim, nil
}
