package event

// Batch is the JSON payload handed to a Transport.
type Batch struct {
	AccountID       string    `json:"account_id"`
	ProjectID       string    `json:"project_id"`
	Revision        string    `json:"revision"`
	ClientName      string    `json:"client_name"`
	ClientVersion   string    `json:"client_version"`
	AnonymizeIP     bool      `json:"anonymize_ip"`
	EnrichDecisions bool      `json:"enrich_decisions"`
	Visitors        []Visitor `json:"visitors"`
}

// Visitor groups the snapshots of one user.
type Visitor struct {
	VisitorID  string             `json:"visitor_id"`
	Attributes []VisitorAttribute `json:"attributes"`
	Snapshots  []Snapshot         `json:"snapshots"`
}

// VisitorAttribute is one user attribute as sent on the wire.
type VisitorAttribute struct {
	EntityID string `json:"entity_id"`
	Key      string `json:"key"`
	Type     string `json:"type"`
	Value    any    `json:"value"`
}

// Snapshot carries the decisions and events of one record.
type Snapshot struct {
	Decisions []SnapshotDecision `json:"decisions,omitempty"`
	Events    []SnapshotEvent    `json:"events"`
}

type SnapshotDecision struct {
	CampaignID   string           `json:"campaign_id"`
	ExperimentID string           `json:"experiment_id"`
	VariationID  string           `json:"variation_id"`
	Metadata     DecisionMetadata `json:"metadata"`
}

type DecisionMetadata struct {
	FlagKey      string `json:"flag_key"`
	RuleKey      string `json:"rule_key"`
	RuleType     string `json:"rule_type"`
	VariationKey string `json:"variation_key"`
	Enabled      bool   `json:"enabled"`
}

type SnapshotEvent struct {
	EntityID  string         `json:"entity_id"`
	Key       string         `json:"key"`
	Timestamp int64          `json:"timestamp"`
	UUID      string         `json:"uuid"`
	Revenue   *int64         `json:"revenue,omitempty"`
	Value     *float64       `json:"value,omitempty"`
	Tags      map[string]any `json:"tags,omitempty"`
}

// Size returns the number of snapshots in the batch.
func (b *Batch) Size() int {
	n := 0
	for _, v := range b.Visitors {
		n += len(v.Snapshots)
	}
	return n
}

// ClientInfo identifies the SDK on every batch.
type ClientInfo struct {
	Name    string
	Version string
}

// BuildBatches groups records by dispatch context, in order of first appearance.
// Inside a batch, records of the same visitor merge into one visitor with one snapshot
// per record in arrival order; the visitor keeps the attributes of its first record.
func BuildBatches(records []Record, client ClientInfo) []*Batch {
	var batches []*Batch
	byContext := make(map[contextKey]*batchBuilder)

	for _, r := range records {
		user := r.User()
		key := user.Context.key()
		b, ok := byContext[key]
		if !ok {
			b = newBatchBuilder(user.Context, client)
			byContext[key] = b
			batches = append(batches, b.batch)
		}
		b.add(r)
	}
	return batches
}

type batchBuilder struct {
	batch        *Batch
	botFiltering *bool
	visitors     map[string]int
}

func newBatchBuilder(ctx Context, client ClientInfo) *batchBuilder {
	return &batchBuilder{
		batch: &Batch{
			AccountID:       ctx.AccountID,
			ProjectID:       ctx.ProjectID,
			Revision:        ctx.Revision,
			ClientName:      client.Name,
			ClientVersion:   client.Version,
			AnonymizeIP:     ctx.AnonymizeIP,
			EnrichDecisions: true,
		},
		botFiltering: ctx.BotFiltering,
		visitors:     make(map[string]int),
	}
}

func (b *batchBuilder) add(r Record) {
	user := r.User()
	idx, ok := b.visitors[user.VisitorID]
	if !ok {
		idx = len(b.batch.Visitors)
		b.visitors[user.VisitorID] = idx
		b.batch.Visitors = append(b.batch.Visitors, Visitor{
			VisitorID:  user.VisitorID,
			Attributes: b.attributes(user.Attributes),
		})
	}
	v := &b.batch.Visitors[idx]
	v.Snapshots = append(v.Snapshots, r.snapshot())
}

func (b *batchBuilder) attributes(attrs []VisitorAttribute) []VisitorAttribute {
	out := make([]VisitorAttribute, 0, len(attrs)+1)
	out = append(out, attrs...)
	if b.botFiltering != nil {
		out = append(out, VisitorAttribute{
			EntityID: botFilteringAttribute,
			Key:      botFilteringAttribute,
			Type:     customAttributeType,
			Value:    *b.botFiltering,
		})
	}
	return out
}
