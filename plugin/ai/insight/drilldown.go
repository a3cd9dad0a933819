package insight

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/promptlens/promptlens/store"
)

// segmentCacheTTL bounds how long a query's segment index stays resolvable
// without recomputing the pipeline.
const segmentCacheTTL = 10 * time.Minute

// DrillDown returns the literal records behind one chart segment. It consults
// the retained segment index for the same query when available; otherwise it
// reruns the full pipeline and filters down to the requested segment. Both
// paths walk the same aggregation, so drill-down counts always agree with the
// chart that was served.
func (e *Engine) DrillDown(ctx context.Context, req *DrillDownRequest) ([]*DrillDownRecord, error) {
	if ids, ok := e.cachedSegment(&req.QueryRequest, req.SegmentKey); ok {
		slog.Debug("drill-down served from segment cache",
			"segment_key", req.SegmentKey,
			"record_count", len(ids))
		return e.fetchByIDs(ctx, ids)
	}

	result, err := e.Query(ctx, &req.QueryRequest)
	if err != nil {
		return nil, err
	}

	ids, ok := result.SegmentIndex[req.SegmentKey]
	if !ok {
		// The segment simply has no members for the current data; an empty
		// list is the correct answer.
		return []*DrillDownRecord{}, nil
	}

	// The pipeline fetched candidates projected to the plan's search field, so
	// they are missing the other text column. Re-fetch the segment members
	// unprojected; drill-down always returns both text fields.
	return e.fetchByIDs(ctx, ids)
}

// fetchByIDs loads full records (both text fields) for a cached segment.
func (e *Engine) fetchByIDs(ctx context.Context, ids []string) ([]*DrillDownRecord, error) {
	if len(ids) == 0 {
		return []*DrillDownRecord{}, nil
	}
	fetched, err := e.store.ListRecords(ctx, &store.FindRecord{IDs: ids})
	if err != nil {
		return nil, err
	}
	records := make([]*DrillDownRecord, 0, len(fetched))
	for _, record := range fetched {
		records = append(records, drillDownRecord(record))
	}
	return records, nil
}

func drillDownRecord(record *store.Record) *DrillDownRecord {
	return &DrillDownRecord{
		ID:           record.ID,
		OwnerID:      record.OwnerID,
		CreatedAt:    time.Unix(record.CreatedTs, 0).UTC(),
		PromptText:   record.PromptText,
		ResponseText: record.ResponseText,
	}
}

// cacheSegments retains a query's segment index for later drill-down.
func (e *Engine) cacheSegments(req *QueryRequest, segmentIndex SegmentIndex) {
	if e.segments == nil {
		return
	}
	data, err := json.Marshal(segmentIndex)
	if err != nil {
		return
	}
	e.segments.Set(segmentCacheKey(req), data, segmentCacheTTL)
}

// cachedSegment looks up one segment's record IDs in the retained index.
func (e *Engine) cachedSegment(req *QueryRequest, segmentKey string) ([]string, bool) {
	if e.segments == nil {
		return nil, false
	}
	data, ok := e.segments.Get(segmentCacheKey(req))
	if !ok {
		return nil, false
	}
	var segmentIndex SegmentIndex
	if err := json.Unmarshal(data, &segmentIndex); err != nil {
		return nil, false
	}
	ids, ok := segmentIndex[segmentKey]
	return ids, ok
}

// segmentCacheKey identifies a query by everything that shapes its result.
func segmentCacheKey(req *QueryRequest) string {
	owner := ""
	if req.OwnerID != nil {
		owner = *req.OwnerID
	}
	since, until := int64(0), int64(0)
	if req.Since != nil {
		since = req.Since.Unix()
	}
	if req.Until != nil {
		until = req.Until.Unix()
	}
	return fmt.Sprintf("insight:%s:%d:%d:%d:%s", owner, since, until, req.Limit, req.Question)
}
