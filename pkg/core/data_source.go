package core

import "sort"

// Default join key columns. A data source that does not name its own key
// columns is assumed to expose these.
const (
	DefaultClientIDColumn       = "client_id"
	DefaultSubmissionDateColumn = "submission_date"
)

// ExperimentsColumnType describes whether and how a data source records
// experiment membership, which determines the shape of the enrollment
// filter added to generated queries.
type ExperimentsColumnType string

const (
	// ExperimentsColumnNone means the source has no experiments column;
	// no membership filter can be applied.
	ExperimentsColumnNone ExperimentsColumnType = "none"
	// ExperimentsColumnSimple means experiments is a slug -> branch map.
	ExperimentsColumnSimple ExperimentsColumnType = "simple"
	// ExperimentsColumnNative means experiments is a slug -> struct map
	// with a branch field.
	ExperimentsColumnNative ExperimentsColumnType = "native"
	// ExperimentsColumnGlean means experiments lives under
	// ping_info.experiments as a key/value array.
	ExperimentsColumnGlean ExperimentsColumnType = "glean"
)

// Valid reports whether t is a known experiments column type.
func (t ExperimentsColumnType) Valid() bool {
	switch t {
	case ExperimentsColumnNone, ExperimentsColumnSimple, ExperimentsColumnNative, ExperimentsColumnGlean:
		return true
	}
	return false
}

// Relationship is the declared cardinality of a join edge. It never changes
// the generated join keyword; it is carried through the composition plan so
// callers can decide whether deduplication is needed downstream.
type Relationship string

const (
	RelationshipOneToOne   Relationship = "one_to_one"
	RelationshipOneToMany  Relationship = "one_to_many"
	RelationshipManyToOne  Relationship = "many_to_one"
	RelationshipManyToMany Relationship = "many_to_many"
)

// Valid reports whether r is a known relationship.
func (r Relationship) Valid() bool {
	switch r {
	case RelationshipOneToOne, RelationshipOneToMany, RelationshipManyToOne, RelationshipManyToMany:
		return true
	}
	return false
}

// Join connects one data source to another. OnExpression, when set, is used
// verbatim as the SQL join condition; otherwise a condition over the shared
// key columns is synthesized by the join graph resolver.
type Join struct {
	OnExpression string
	Relationship Relationship
}

// DataSource is a resolved, fully-defaulted SQL-queryable source.
type DataSource struct {
	Slug                  string
	FromExpression        string
	ClientIDColumn        string
	SubmissionDateColumn  string
	ExperimentsColumnType ExperimentsColumnType
	FriendlyName          string
	Description           string
	// Joins is keyed by the target data source slug.
	Joins map[string]Join
}

// JoinTargets returns the join target slugs in deterministic (sorted) order.
// Map iteration order must never leak into generated SQL.
func (d DataSource) JoinTargets() []string {
	targets := make([]string, 0, len(d.Joins))
	for slug := range d.Joins {
		targets = append(targets, slug)
	}
	sort.Strings(targets)
	return targets
}

// JoinDefinition is the authored form of a Join.
type JoinDefinition struct {
	OnExpression *string `koanf:"on_expression"`
	Relationship *string `koanf:"relationship"`
}

// Clone returns a deep copy.
func (j *JoinDefinition) Clone() *JoinDefinition {
	if j == nil {
		return nil
	}
	out := &JoinDefinition{}
	out.OnExpression = cloneString(j.OnExpression)
	out.Relationship = cloneString(j.Relationship)
	return out
}

// Merge overlays fields explicitly present in other onto j.
func (j *JoinDefinition) Merge(other *JoinDefinition) {
	if other == nil {
		return
	}
	if other.OnExpression != nil {
		j.OnExpression = other.OnExpression
	}
	if other.Relationship != nil {
		j.Relationship = other.Relationship
	}
}

// Resolve fills defaults and validates enum fields.
func (j *JoinDefinition) Resolve() (Join, error) {
	join := Join{Relationship: RelationshipManyToMany}
	if j.OnExpression != nil {
		join.OnExpression = *j.OnExpression
	}
	if j.Relationship != nil {
		join.Relationship = Relationship(*j.Relationship)
		if !join.Relationship.Valid() {
			return Join{}, &MalformedOverrideError{
				Field: "relationship",
				Value: *j.Relationship,
			}
		}
	}
	return join, nil
}

// DataSourceDefinition is the authored form of a DataSource.
type DataSourceDefinition struct {
	FromExpression        *string                    `koanf:"from_expression"`
	ClientIDColumn        *string                    `koanf:"client_id_column"`
	SubmissionDateColumn  *string                    `koanf:"submission_date_column"`
	ExperimentsColumnType *string                    `koanf:"experiments_column_type"`
	FriendlyName          *string                    `koanf:"friendly_name"`
	Description           *string                    `koanf:"description"`
	Joins                 map[string]*JoinDefinition `koanf:"joins"`
	// Disabled removes a previously-defined data source from the resolved
	// configuration. Redeclaring the slug in a later layer starts fresh.
	Disabled bool `koanf:"disabled"`
}

// Clone returns a deep copy.
func (d *DataSourceDefinition) Clone() *DataSourceDefinition {
	if d == nil {
		return nil
	}
	out := &DataSourceDefinition{Disabled: d.Disabled}
	out.FromExpression = cloneString(d.FromExpression)
	out.ClientIDColumn = cloneString(d.ClientIDColumn)
	out.SubmissionDateColumn = cloneString(d.SubmissionDateColumn)
	out.ExperimentsColumnType = cloneString(d.ExperimentsColumnType)
	out.FriendlyName = cloneString(d.FriendlyName)
	out.Description = cloneString(d.Description)
	if d.Joins != nil {
		out.Joins = make(map[string]*JoinDefinition, len(d.Joins))
		for slug, join := range d.Joins {
			out.Joins[slug] = join.Clone()
		}
	}
	return out
}

// Merge overlays fields explicitly present in other onto d. Joins merge
// key-by-key: an override layer may add a join or override fields of an
// existing one without discarding siblings.
func (d *DataSourceDefinition) Merge(other *DataSourceDefinition) {
	if other == nil {
		return
	}
	if other.FromExpression != nil {
		d.FromExpression = other.FromExpression
	}
	if other.ClientIDColumn != nil {
		d.ClientIDColumn = other.ClientIDColumn
	}
	if other.SubmissionDateColumn != nil {
		d.SubmissionDateColumn = other.SubmissionDateColumn
	}
	if other.ExperimentsColumnType != nil {
		d.ExperimentsColumnType = other.ExperimentsColumnType
	}
	if other.FriendlyName != nil {
		d.FriendlyName = other.FriendlyName
	}
	if other.Description != nil {
		d.Description = other.Description
	}
	for slug, join := range other.Joins {
		if d.Joins == nil {
			d.Joins = make(map[string]*JoinDefinition)
		}
		if existing, ok := d.Joins[slug]; ok {
			existing.Merge(join)
		} else {
			d.Joins[slug] = join.Clone()
		}
	}
}

// Resolve produces the fully-defaulted record for slug.
func (d *DataSourceDefinition) Resolve(slug string) (DataSource, error) {
	ds := DataSource{
		Slug:                  slug,
		ClientIDColumn:        DefaultClientIDColumn,
		SubmissionDateColumn:  DefaultSubmissionDateColumn,
		ExperimentsColumnType: ExperimentsColumnNone,
	}
	if d.FromExpression != nil {
		ds.FromExpression = *d.FromExpression
	}
	if d.ClientIDColumn != nil {
		ds.ClientIDColumn = *d.ClientIDColumn
	}
	if d.SubmissionDateColumn != nil {
		ds.SubmissionDateColumn = *d.SubmissionDateColumn
	}
	if d.ExperimentsColumnType != nil {
		ds.ExperimentsColumnType = ExperimentsColumnType(*d.ExperimentsColumnType)
		if !ds.ExperimentsColumnType.Valid() {
			return DataSource{}, &MalformedOverrideError{
				Slug:  slug,
				Field: "experiments_column_type",
				Value: *d.ExperimentsColumnType,
			}
		}
	}
	if d.FriendlyName != nil {
		ds.FriendlyName = *d.FriendlyName
	}
	if d.Description != nil {
		ds.Description = *d.Description
	}
	if len(d.Joins) > 0 {
		ds.Joins = make(map[string]Join, len(d.Joins))
		for target, jd := range d.Joins {
			join, err := jd.Resolve()
			if err != nil {
				if merr, ok := err.(*MalformedOverrideError); ok {
					merr.Slug = slug
				}
				return DataSource{}, err
			}
			ds.Joins[target] = join
		}
	}
	return ds, nil
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneBool(b *bool) *bool {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}

func cloneParams(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		if nested, ok := v.(map[string]any); ok {
			out[k] = cloneParams(nested)
		} else {
			out[k] = v
		}
	}
	return out
}
