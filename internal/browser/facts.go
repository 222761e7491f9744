package browser

import (
	"context"

	"starquery/internal/domain"
	"starquery/internal/query"
	"starquery/internal/result"
)

// Listing is a page of member or fact records.
type Listing struct {
	Labels  []string
	Records []result.Record
	// Total counts the records of all pages.
	Total int
}

// Members lists the distinct members of a dimension that have facts in
// the cell. NULL detail attributes are left out of the member records.
func (b *Browser) Members(ctx context.Context, req query.MembersRequest) (*Listing, error) {
	stmt, err := b.builder.Members(req)
	if err != nil {
		return nil, err
	}
	dim, err := b.cube.Dimension(req.Dimension)
	if err != nil {
		return nil, err
	}
	var details []string
	for _, l := range dim.Levels {
		for _, a := range l.Attributes {
			if a != l.Key() {
				details = append(details, a.Ref())
			}
		}
	}
	return b.list(ctx, "members", stmt, req.PageSize, result.WithOmitNull(details...))
}

// Facts lists the facts in a cell with their dimension attributes.
func (b *Browser) Facts(ctx context.Context, req query.FactsRequest) (*Listing, error) {
	stmt, err := b.builder.Denormalized(req)
	if err != nil {
		return nil, err
	}
	return b.list(ctx, "facts", stmt, req.PageSize)
}

// Fact returns the fact with the given key.
func (b *Browser) Fact(ctx context.Context, key any) (result.Record, error) {
	stmt, err := b.builder.Fact(key)
	if err != nil {
		return nil, err
	}
	records, err := b.execute(ctx, "fact", stmt)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, domain.ErrNotFound("cube %q has no fact with key %v", b.cube.Name, key)
	}
	return records[0], nil
}

func (b *Browser) list(ctx context.Context, op string, stmt *query.Statement, pageSize int, opts ...result.Option) (*Listing, error) {
	records, err := b.execute(ctx, op, stmt, opts...)
	if err != nil {
		return nil, err
	}
	out := &Listing{Labels: stmt.Labels, Records: records, Total: len(records)}
	if pageSize > 0 {
		if out.Total, err = b.count(ctx, op+" count", stmt); err != nil {
			return nil, err
		}
	}
	return out, nil
}
