package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

// RecordClient performs CRUD on one record collection.
type RecordClient struct {
	c    *Client
	kind core.Kind
}

// Records returns the client for kind's collection.
func (c *Client) Records(kind core.Kind) *RecordClient {
	return &RecordClient{c: c, kind: kind}
}

// List reads the whole collection, wrapped under the kind's collection key.
func (rc *RecordClient) List(ctx context.Context) ([]core.Record, error) {
	var payload map[string]json.RawMessage
	op := rc.kind.Name + ".list"
	if err := rc.c.do(ctx, op, "GET", rc.kind.Path, nil, true, &payload); err != nil {
		return nil, err
	}
	raw, ok := payload[rc.kind.Collection]
	if !ok {
		return nil, &NetworkError{Op: op, Err: fmt.Errorf("response has no %q key", rc.kind.Collection)}
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, &NetworkError{Op: op, Err: fmt.Errorf("decode %s: %w", rc.kind.Collection, err)}
	}
	out := make([]core.Record, 0, len(items))
	for _, item := range items {
		r := core.Record{Kind: rc.kind}
		if err := json.Unmarshal(item, &r); err != nil {
			rc.skip(ctx, item, err)
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// skip logs a record that cannot be shown. The rest of the collection is
// still usable, so one bad row does not stall the view.
func (rc *RecordClient) skip(ctx context.Context, item json.RawMessage, err error) {
	var ref struct {
		ID string `json:"_id"`
	}
	_ = json.Unmarshal(item, &ref)
	fields := log.NewFields().WithOperation(log.OpList).WithError(err, log.ErrorTypeServer)
	fields[log.FieldKind] = rc.kind.Name
	fields[log.FieldRecordID] = ref.ID
	rc.c.logger.WarnContext(ctx, "Skipping undecodable record", fields.ToSlice()...)
}

func (rc *RecordClient) Create(ctx context.Context, d core.Draft) (core.Record, error) {
	d.Kind = rc.kind
	out := core.Record{Kind: rc.kind}
	if err := rc.c.do(ctx, rc.kind.Name+".create", "POST", rc.kind.Path, d, true, &out); err != nil {
		return core.Record{}, err
	}
	return out, nil
}

func (rc *RecordClient) Update(ctx context.Context, id string, d core.Draft) (core.Record, error) {
	d.Kind = rc.kind
	out := core.Record{Kind: rc.kind}
	if err := rc.c.do(ctx, rc.kind.Name+".update", "PUT", rc.itemPath(id), d, true, &out); err != nil {
		return core.Record{}, err
	}
	return out, nil
}

func (rc *RecordClient) Delete(ctx context.Context, id string) error {
	return rc.c.do(ctx, rc.kind.Name+".delete", "DELETE", rc.itemPath(id), nil, true, nil)
}

func (rc *RecordClient) itemPath(id string) string {
	return rc.kind.Path + "/" + url.PathEscape(id)
}
