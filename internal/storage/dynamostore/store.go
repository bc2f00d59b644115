// Package dynamostore implements the storage gateway on a single DynamoDB
// table with images and exports kept in S3.
//
// Every entity shares one table keyed by PK and SK. The GSI1 index groups a
// cycle's captures and batches under CYCLE#<id> and lists cameras and routes.
package dynamostore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dpup/prefab/logging"

	"github.com/dpup/wolfcreekpass/server/internal/model"
	"github.com/dpup/wolfcreekpass/server/internal/storage"
)

// DynamoAPI is the subset of the DynamoDB client used by the store
type DynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, opts ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, opts ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// Provisioner prepares the object store, typically blob.S3
type Provisioner interface {
	EnsureBucket(ctx context.Context) error
}

// Options configures a DynamoDB store
type Options struct {
	Table  string
	Images storage.ObjectStore
	// CreateResources creates a missing table and bucket, used against a
	// local emulator
	CreateResources bool
}

// Store implements storage.Gateway on DynamoDB
type Store struct {
	client          DynamoAPI
	table           string
	images          storage.ObjectStore
	createResources bool
}

var _ storage.Gateway = (*Store)(nil)

const (
	batchWriteSize   = 25
	batchWriteTries  = 5
	recentCyclesPage = 25
)

// New creates a store over an existing DynamoDB client
func New(client DynamoAPI, opts Options) *Store {
	return &Store{
		client:          client,
		table:           opts.Table,
		images:          opts.Images,
		createResources: opts.CreateResources,
	}
}

func withJSONTags(o *attributevalue.EncoderOptions) {
	o.TagKey = "json"
}

func withJSONTagsDecode(o *attributevalue.DecoderOptions) {
	o.TagKey = "json"
}

func marshal(v any) (map[string]types.AttributeValue, error) {
	return attributevalue.MarshalMapWithOptions(v, withJSONTags)
}

func unmarshal(item map[string]types.AttributeValue, v any) error {
	return attributevalue.UnmarshalMapWithOptions(item, v, withJSONTagsDecode)
}

func keyOf(k ItemKeys) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrPK: &types.AttributeValueMemberS{Value: k.PK},
		attrSK: &types.AttributeValueMemberS{Value: k.SK},
	}
}

// Init verifies the table and bucket exist, creating them when configured to
func (s *Store) Init(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.table)})
	var notFound *types.ResourceNotFoundException
	switch {
	case errors.As(err, &notFound) && s.createResources:
		if err := s.createTable(ctx); err != nil {
			return err
		}
	case err != nil:
		return fmt.Errorf("failed to describe table %s: %w", s.table, err)
	}

	if p, ok := s.images.(Provisioner); ok && s.createResources {
		if err := p.EnsureBucket(ctx); err != nil {
			return err
		}
	}
	logging.Infow(ctx, "DynamoDB storage ready", "table", s.table)
	return nil
}

func (s *Store) createTable(ctx context.Context) error {
	str := types.ScalarAttributeTypeS
	_, err := s.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(s.table),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(attrPK), AttributeType: str},
			{AttributeName: aws.String(attrSK), AttributeType: str},
			{AttributeName: aws.String(attrGSI1PK), AttributeType: str},
			{AttributeName: aws.String(attrGSI1SK), AttributeType: str},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(attrPK), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(attrSK), KeyType: types.KeyTypeRange},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{{
			IndexName: aws.String(gsi1),
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String(attrGSI1PK), KeyType: types.KeyTypeHash},
				{AttributeName: aws.String(attrGSI1SK), KeyType: types.KeyTypeRange},
			},
			Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
		}},
		BillingMode: types.BillingModePayPerRequest,
	})
	var inUse *types.ResourceInUseException
	if err != nil && !errors.As(err, &inUse) {
		return fmt.Errorf("failed to create table %s: %w", s.table, err)
	}
	logging.Infow(ctx, "Created DynamoDB table", "table", s.table)
	return nil
}

// Close is a no-op, the SDK client holds no connections to release
func (s *Store) Close() error {
	return nil
}

// Objects returns the image and export store
func (s *Store) Objects() storage.ObjectStore {
	return s.images
}

func (s *Store) put(ctx context.Context, v any, condition string) error {
	item, err := marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}
	in := &dynamodb.PutItemInput{TableName: aws.String(s.table), Item: item}
	if condition != "" {
		in.ConditionExpression = aws.String(condition)
	}
	_, err = s.client.PutItem(ctx, in)
	return err
}

func (s *Store) get(ctx context.Context, k ItemKeys) (map[string]types.AttributeValue, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            keyOf(k),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	return out.Item, nil
}

// keyQuery describes a partition query with an optional sort key prefix
type keyQuery struct {
	index     bool
	pk        string
	skPrefix  string
	ascending bool
	// limit caps the number of items returned, zero reads everything
	limit int
}

func (s *Store) query(ctx context.Context, q keyQuery) ([]map[string]types.AttributeValue, error) {
	pkName, skName := attrPK, attrSK
	if q.index {
		pkName, skName = attrGSI1PK, attrGSI1SK
	}

	in := &dynamodb.QueryInput{
		TableName:                 aws.String(s.table),
		KeyConditionExpression:    aws.String("#pk = :pk"),
		ExpressionAttributeNames:  map[string]string{"#pk": pkName},
		ExpressionAttributeValues: map[string]types.AttributeValue{":pk": &types.AttributeValueMemberS{Value: q.pk}},
		ScanIndexForward:          aws.Bool(q.ascending),
	}
	if q.index {
		in.IndexName = aws.String(gsi1)
	}
	if q.skPrefix != "" {
		in.KeyConditionExpression = aws.String("#pk = :pk AND begins_with(#sk, :prefix)")
		in.ExpressionAttributeNames["#sk"] = skName
		in.ExpressionAttributeValues[":prefix"] = &types.AttributeValueMemberS{Value: q.skPrefix}
	}
	if q.limit > 0 {
		in.Limit = aws.Int32(int32(q.limit))
	}

	var items []map[string]types.AttributeValue
	for {
		out, err := s.client.Query(ctx, in)
		if err != nil {
			return nil, err
		}
		items = append(items, out.Items...)
		if q.limit > 0 && len(items) >= q.limit {
			return items[:q.limit], nil
		}
		if len(out.LastEvaluatedKey) == 0 {
			return items, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// batchWrite sends write requests in chunks, retrying unprocessed items
func (s *Store) batchWrite(ctx context.Context, requests []types.WriteRequest) error {
	for start := 0; start < len(requests); start += batchWriteSize {
		end := min(start+batchWriteSize, len(requests))
		pending := map[string][]types.WriteRequest{s.table: requests[start:end]}
		for attempt := 0; len(pending[s.table]) > 0; attempt++ {
			if attempt == batchWriteTries {
				return fmt.Errorf("%d items left unprocessed after %d attempts", len(pending[s.table]), attempt)
			}
			if attempt > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(time.Duration(attempt*attempt) * 50 * time.Millisecond):
				}
			}
			out, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
			if err != nil {
				return err
			}
			pending = out.UnprocessedItems
		}
	}
	return nil
}

func putRequest(v any) (types.WriteRequest, error) {
	item, err := marshal(v)
	if err != nil {
		return types.WriteRequest{}, fmt.Errorf("failed to marshal item: %w", err)
	}
	return types.WriteRequest{PutRequest: &types.PutRequest{Item: item}}, nil
}

// requireCycle fails with storage.ErrUnknownCycle unless the cycle exists
func (s *Store) requireCycle(ctx context.Context, cycleID string) error {
	item, err := s.get(ctx, cycleKeys(cycleID))
	if err != nil {
		return fmt.Errorf("failed to check cycle %s: %w", cycleID, err)
	}
	if len(item) == 0 {
		return fmt.Errorf("cycle %s: %w", cycleID, storage.ErrUnknownCycle)
	}
	return nil
}

// SaveCamera upserts a camera by id
func (s *Store) SaveCamera(ctx context.Context, camera model.Camera) error {
	if err := s.put(ctx, cameraItem{ItemKeys: cameraKeys(camera.ID), Camera: camera}, ""); err != nil {
		return fmt.Errorf("failed to save camera %d: %w", camera.ID, err)
	}
	return nil
}

// GetCameras returns all cameras ordered by id
func (s *Store) GetCameras(ctx context.Context) ([]model.Camera, error) {
	items, err := s.query(ctx, keyQuery{index: true, pk: "CAMERA", ascending: true})
	if err != nil {
		return nil, fmt.Errorf("failed to load cameras: %w", err)
	}
	out := make([]model.Camera, 0, len(items))
	for _, item := range items {
		var ci cameraItem
		if err := unmarshal(item, &ci); err != nil {
			return nil, fmt.Errorf("failed to decode camera: %w", err)
		}
		out = append(out, ci.Camera)
	}
	return out, nil
}

// SaveCapture inserts a capture record unless one exists for the camera and cycle
func (s *Store) SaveCapture(ctx context.Context, capture model.CaptureRecord) error {
	if err := s.requireCycle(ctx, capture.CycleID); err != nil {
		return err
	}
	capture.CapturedAt = capture.CapturedAt.UTC()
	item := captureItem{ItemKeys: captureKeys(capture.CameraID, capture.CycleID), CaptureRecord: capture}
	err := s.put(ctx, item, "attribute_not_exists(PK)")
	var failed *types.ConditionalCheckFailedException
	switch {
	case errors.As(err, &failed):
		return fmt.Errorf("camera %d cycle %s: %w", capture.CameraID, capture.CycleID, storage.ErrDuplicateCapture)
	case err != nil:
		return fmt.Errorf("failed to save capture for camera %d: %w", capture.CameraID, err)
	}
	return nil
}

// GetRecentCaptures walks cycles newest first until limit captures are found
func (s *Store) GetRecentCaptures(ctx context.Context, limit int) ([]model.CaptureRecord, error) {
	out := []model.CaptureRecord{}
	if limit <= 0 {
		return out, nil
	}

	in := &dynamodb.QueryInput{
		TableName:                 aws.String(s.table),
		KeyConditionExpression:    aws.String("#pk = :pk AND begins_with(#sk, :prefix)"),
		ExpressionAttributeNames:  map[string]string{"#pk": attrPK, "#sk": attrSK},
		ExpressionAttributeValues: map[string]types.AttributeValue{":pk": &types.AttributeValueMemberS{Value: pkCycles}, ":prefix": &types.AttributeValueMemberS{Value: "CYCLE#"}},
		ScanIndexForward:          aws.Bool(false),
		Limit:                     aws.Int32(recentCyclesPage),
	}
	for {
		page, err := s.client.Query(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("failed to load cycles: %w", err)
		}
		for _, item := range page.Items {
			var ci cycleItem
			if err := unmarshal(item, &ci); err != nil {
				return nil, fmt.Errorf("failed to decode cycle: %w", err)
			}
			captures, err := s.GetCapturesByCycle(ctx, ci.CycleID)
			if err != nil {
				return nil, err
			}
			sort.SliceStable(captures, func(i, j int) bool {
				return captures[i].CapturedAt.After(captures[j].CapturedAt)
			})
			out = append(out, captures...)
			if len(out) >= limit {
				return out[:limit], nil
			}
		}
		if len(page.LastEvaluatedKey) == 0 {
			return out, nil
		}
		in.ExclusiveStartKey = page.LastEvaluatedKey
	}
}

// GetCapturesByCycle returns the cycle's captures ordered by camera id
func (s *Store) GetCapturesByCycle(ctx context.Context, cycleID string) ([]model.CaptureRecord, error) {
	items, err := s.query(ctx, keyQuery{index: true, pk: cyclePK(cycleID), skPrefix: tagCapture, ascending: true})
	if err != nil {
		return nil, fmt.Errorf("failed to load captures for cycle %s: %w", cycleID, err)
	}
	return decodeCaptures(items)
}

// GetLatestCapture returns the camera's newest capture or nil. Cycle ids sort
// chronologically so the last capture sort key is the newest.
func (s *Store) GetLatestCapture(ctx context.Context, cameraID int) (*model.CaptureRecord, error) {
	pk := cameraKeys(cameraID).PK
	items, err := s.query(ctx, keyQuery{pk: pk, skPrefix: tagCapture, limit: 1})
	if err != nil {
		return nil, fmt.Errorf("failed to load latest capture for camera %d: %w", cameraID, err)
	}
	if len(items) == 0 {
		return nil, nil
	}
	captures, err := decodeCaptures(items)
	if err != nil {
		return nil, err
	}
	return &captures[0], nil
}

func decodeCaptures(items []map[string]types.AttributeValue) ([]model.CaptureRecord, error) {
	out := make([]model.CaptureRecord, 0, len(items))
	for _, item := range items {
		var ci captureItem
		if err := unmarshal(item, &ci); err != nil {
			return nil, fmt.Errorf("failed to decode capture: %w", err)
		}
		out = append(out, ci.CaptureRecord)
	}
	return out, nil
}

// SaveRoutes replaces the stored route set
func (s *Store) SaveRoutes(ctx context.Context, routes []model.Route) error {
	existing, err := s.query(ctx, keyQuery{index: true, pk: "ROUTE", ascending: true})
	if err != nil {
		return fmt.Errorf("failed to load routes: %w", err)
	}

	keep := make(map[string]bool, len(routes))
	var requests []types.WriteRequest
	for _, r := range routes {
		keep[r.RouteID] = true
		req, err := putRequest(routeItem{ItemKeys: routeKeys(r.RouteID), Route: r})
		if err != nil {
			return err
		}
		requests = append(requests, req)
	}
	for _, item := range existing {
		var ri routeItem
		if err := unmarshal(item, &ri); err != nil {
			return fmt.Errorf("failed to decode route: %w", err)
		}
		if !keep[ri.RouteID] {
			requests = append(requests, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{Key: keyOf(routeKeys(ri.RouteID))},
			})
		}
	}

	if err := s.batchWrite(ctx, requests); err != nil {
		return fmt.Errorf("failed to save routes: %w", err)
	}
	return nil
}

// GetRoutes returns the stored routes ordered by id
func (s *Store) GetRoutes(ctx context.Context) ([]model.Route, error) {
	items, err := s.query(ctx, keyQuery{index: true, pk: "ROUTE", ascending: true})
	if err != nil {
		return nil, fmt.Errorf("failed to load routes: %w", err)
	}
	out := make([]model.Route, 0, len(items))
	for _, item := range items {
		var ri routeItem
		if err := unmarshal(item, &ri); err != nil {
			return nil, fmt.Errorf("failed to decode route: %w", err)
		}
		out = append(out, ri.Route)
	}
	return out, nil
}

// SaveCycle upserts a cycle summary
func (s *Store) SaveCycle(ctx context.Context, cycle model.CycleSummary) error {
	cycle.StartedAt = cycle.StartedAt.UTC()
	if cycle.CompletedAt != nil {
		cycle.CompletedAt = model.Ptr(cycle.CompletedAt.UTC())
	}
	if err := s.put(ctx, cycleItem{ItemKeys: cycleKeys(cycle.CycleID), CycleSummary: cycle}, ""); err != nil {
		return fmt.Errorf("failed to save cycle %s: %w", cycle.CycleID, err)
	}
	return nil
}

// GetCycle returns one cycle summary
func (s *Store) GetCycle(ctx context.Context, cycleID string) (*model.CycleSummary, error) {
	item, err := s.get(ctx, cycleKeys(cycleID))
	if err != nil {
		return nil, fmt.Errorf("failed to load cycle %s: %w", cycleID, err)
	}
	if len(item) == 0 {
		return nil, fmt.Errorf("cycle %s: %w", cycleID, storage.ErrNotFound)
	}
	var ci cycleItem
	if err := unmarshal(item, &ci); err != nil {
		return nil, fmt.Errorf("failed to decode cycle %s: %w", cycleID, err)
	}
	return &ci.CycleSummary, nil
}

// GetCycles returns the most recently started cycles. Cycle ids are derived
// from the start time so sort key order is start order.
func (s *Store) GetCycles(ctx context.Context, limit int) ([]model.CycleSummary, error) {
	if limit <= 0 {
		return []model.CycleSummary{}, nil
	}
	items, err := s.query(ctx, keyQuery{pk: pkCycles, skPrefix: "CYCLE#", limit: limit})
	if err != nil {
		return nil, fmt.Errorf("failed to load cycles: %w", err)
	}
	out := make([]model.CycleSummary, 0, len(items))
	for _, item := range items {
		var ci cycleItem
		if err := unmarshal(item, &ci); err != nil {
			return nil, fmt.Errorf("failed to decode cycle: %w", err)
		}
		out = append(out, ci.CycleSummary)
	}
	return out, nil
}

// saveBatch writes a cycle-scoped batch after checking the cycle exists.
// build returns the item for the element at seq.
func saveBatch[T any](ctx context.Context, s *Store, cycleID, kind string, elems []T, build func(seq int, elem T) any) error {
	if err := s.requireCycle(ctx, cycleID); err != nil {
		return fmt.Errorf("failed to save %s: %w", kind, err)
	}
	requests := make([]types.WriteRequest, 0, len(elems))
	for i, e := range elems {
		req, err := putRequest(build(i, e))
		if err != nil {
			return err
		}
		requests = append(requests, req)
	}
	if err := s.batchWrite(ctx, requests); err != nil {
		return fmt.Errorf("failed to save %s for cycle %s: %w", kind, cycleID, err)
	}
	return nil
}

// loadBatch reads a cycle-scoped batch in insertion order
func loadBatch[I any, T any](ctx context.Context, s *Store, cycleID, tag, kind string, extract func(I) T) ([]T, error) {
	items, err := s.query(ctx, keyQuery{index: true, pk: cyclePK(cycleID), skPrefix: tag, ascending: true})
	if err != nil {
		return nil, fmt.Errorf("failed to load %s for cycle %s: %w", kind, cycleID, err)
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		var decoded I
		if err := unmarshal(item, &decoded); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", kind, err)
		}
		out = append(out, extract(decoded))
	}
	return out, nil
}

func meta(cycleID string, seq int) ScopedMeta {
	return ScopedMeta{BatchCycleID: cycleID, Seq: seq}
}

// SaveRoadConditions stores the cycle's road conditions
func (s *Store) SaveRoadConditions(ctx context.Context, cycleID string, conditions []model.RoadCondition) error {
	return saveBatch(ctx, s, cycleID, "road conditions", conditions, func(seq int, c model.RoadCondition) any {
		return conditionItem{scopedKeys(tagCondition, fmt.Sprint(c.ID), cycleID, seq), meta(cycleID, seq), c}
	})
}

// GetRoadConditions returns the cycle's road conditions
func (s *Store) GetRoadConditions(ctx context.Context, cycleID string) ([]model.RoadCondition, error) {
	return loadBatch(ctx, s, cycleID, tagCondition, "road conditions", func(i conditionItem) model.RoadCondition {
		return i.RoadCondition
	})
}

// SaveEvents stores the cycle's events
func (s *Store) SaveEvents(ctx context.Context, cycleID string, events []model.Event) error {
	return saveBatch(ctx, s, cycleID, "events", events, func(seq int, e model.Event) any {
		return eventItem{scopedKeys(tagEvent, e.ID, cycleID, seq), meta(cycleID, seq), e}
	})
}

// GetEvents returns the cycle's events
func (s *Store) GetEvents(ctx context.Context, cycleID string) ([]model.Event, error) {
	return loadBatch(ctx, s, cycleID, tagEvent, "events", func(i eventItem) model.Event {
		return i.Event
	})
}

// SaveWeather stores the cycle's weather station readings
func (s *Store) SaveWeather(ctx context.Context, cycleID string, stations []model.WeatherStation) error {
	return saveBatch(ctx, s, cycleID, "weather", stations, func(seq int, w model.WeatherStation) any {
		return weatherItem{scopedKeys(tagWeather, fmt.Sprint(w.ID), cycleID, seq), meta(cycleID, seq), w}
	})
}

// GetWeather returns the cycle's weather station readings
func (s *Store) GetWeather(ctx context.Context, cycleID string) ([]model.WeatherStation, error) {
	return loadBatch(ctx, s, cycleID, tagWeather, "weather", func(i weatherItem) model.WeatherStation {
		return i.WeatherStation
	})
}

// SaveMountainPasses stores the cycle's pass reports
func (s *Store) SaveMountainPasses(ctx context.Context, cycleID string, passes []model.MountainPass) error {
	return saveBatch(ctx, s, cycleID, "mountain passes", passes, func(seq int, p model.MountainPass) any {
		return passItem{scopedKeys(tagPass, fmt.Sprint(p.ID), cycleID, seq), meta(cycleID, seq), p}
	})
}

// GetMountainPasses returns the cycle's pass reports
func (s *Store) GetMountainPasses(ctx context.Context, cycleID string) ([]model.MountainPass, error) {
	return loadBatch(ctx, s, cycleID, tagPass, "mountain passes", func(i passItem) model.MountainPass {
		return i.MountainPass
	})
}

// SaveSnowPlows stores the cycle's plow positions
func (s *Store) SaveSnowPlows(ctx context.Context, cycleID string, plows []model.SnowPlow) error {
	return saveBatch(ctx, s, cycleID, "snow plows", plows, func(seq int, p model.SnowPlow) any {
		return plowItem{scopedKeys(tagPlow, fmt.Sprint(p.ID), cycleID, seq), meta(cycleID, seq), p}
	})
}

// GetSnowPlows returns the cycle's plow positions
func (s *Store) GetSnowPlows(ctx context.Context, cycleID string) ([]model.SnowPlow, error) {
	return loadBatch(ctx, s, cycleID, tagPlow, "snow plows", func(i plowItem) model.SnowPlow {
		return i.SnowPlow
	})
}

// SaveImage uploads image bytes and returns the object URL
func (s *Store) SaveImage(ctx context.Context, key string, data []byte) (string, error) {
	objectKey := storage.ImagePrefix + strings.TrimPrefix(key, "/")
	if err := s.images.Put(ctx, objectKey, data, "image/jpeg"); err != nil {
		return "", fmt.Errorf("failed to save image %s: %w", key, err)
	}
	return s.images.URL(objectKey), nil
}

// GetImageURL returns the URL for a stored image key
func (s *Store) GetImageURL(key string) string {
	return s.images.URL(storage.ImagePrefix + strings.TrimPrefix(key, "/"))
}

// GetImageHash returns the camera's latest image hash
func (s *Store) GetImageHash(ctx context.Context, cameraID int) (string, bool, error) {
	item, err := s.get(ctx, hashKeys(cameraID))
	if err != nil {
		return "", false, fmt.Errorf("failed to load image hash for camera %d: %w", cameraID, err)
	}
	if len(item) == 0 {
		return "", false, nil
	}
	var hi hashItem
	if err := unmarshal(item, &hi); err != nil {
		return "", false, fmt.Errorf("failed to decode image hash: %w", err)
	}
	return hi.HashHex, true, nil
}

// SaveImageHash records the camera's latest image hash
func (s *Store) SaveImageHash(ctx context.Context, cameraID int, hashHex string) error {
	item := hashItem{
		ItemKeys:  hashKeys(cameraID),
		CameraID:  cameraID,
		HashHex:   hashHex,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.put(ctx, item, ""); err != nil {
		return fmt.Errorf("failed to save image hash for camera %d: %w", cameraID, err)
	}
	return nil
}
