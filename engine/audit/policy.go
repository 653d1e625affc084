package audit

import "github.com/aethermart/dataplane/engine/entity"

// Group folds several fields into one composite history entry. Any
// member change produces a single record under the group's name, with
// old and new values rendered from all members in declared order.
type Group struct {
	Name    string
	Members []string
}

// Policy declares what the recorder watches for one entity kind.
// Kinds without a policy produce no history at all.
type Policy struct {
	Kind      entity.Kind
	Monitored []string
	Groups    []Group
	// Streams routes a monitored field or group name to a specific
	// stream; unlisted entries go to StreamFieldAudit.
	Streams map[string]Stream
}

func (p *Policy) stream(name string) Stream {
	if s, ok := p.Streams[name]; ok {
		return s
	}
	return StreamFieldAudit
}

// DefaultPolicies returns the store's audit configuration: product
// catalog fields with price routed to its own stream, and customer
// contact fields with the address parts folded into one entry.
func DefaultPolicies() []*Policy {
	return []*Policy{
		{
			Kind:      entity.KindProduct,
			Monitored: []string{"product_name", "price", "category_id", "supplier_id"},
			Streams:   map[string]Stream{"price": StreamPriceHistory},
		},
		{
			Kind:      entity.KindCustomer,
			Monitored: []string{"first_name", "last_name", "email"},
			Groups: []Group{
				{Name: "address", Members: []string{"city", "state", "zipcode"}},
			},
		},
	}
}
