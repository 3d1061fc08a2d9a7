package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"finverse-chatbot/internal/dto"
	"finverse-chatbot/internal/pkg/logger"
	"finverse-chatbot/internal/repository/memory"
	"finverse-chatbot/pkg/cache"
	"finverse-chatbot/pkg/catalog"
	"finverse-chatbot/pkg/rag/executor"
	"finverse-chatbot/pkg/rag/intent"
	"finverse-chatbot/pkg/rag/response"
	"finverse-chatbot/pkg/rag/structured"
	"finverse-chatbot/pkg/store"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var (
	ErrComparisonNotFound     = errors.New("comparison not found")
	ErrTooFewProductsFound    = errors.New("at least 2 of the requested products must be listed")
	ErrUnknownComparisonField = errors.New("unknown comparison field")
)

const DefaultComparisonTTL = time.Hour

// IComparisonService builds side-by-side product comparisons
type IComparisonService interface {
	Compare(ctx context.Context, in dto.CompareInput) (*dto.ComparisonResponse, error)
	Get(ctx context.Context, comparisonId string) (*dto.ComparisonResponse, error)
}

// criterion says how one catalog field is judged. Categorical fields are
// listed in the table but never have a best option.
type criterion struct {
	field         string
	categorical   bool
	lowerIsBetter bool
	notes         string
}

var comparisonCriteria = []criterion{
	{field: "institution", categorical: true},
	{field: "productType", categorical: true},
	{field: "interestRate", lowerIsBetter: true, notes: "Lower interest rate means lower borrowing cost"},
	{field: "annualPercentageRate", lowerIsBetter: true, notes: "Lower APR means lower total cost of credit"},
	{field: "minimumBalance", lowerIsBetter: true, notes: "A lower minimum balance is easier to maintain"},
	{field: "monthlyFee", lowerIsBetter: true, notes: "Lower fees reduce ongoing costs"},
	{field: "annualFee", lowerIsBetter: true, notes: "Lower fees reduce ongoing costs"},
	{field: "originationFee", lowerIsBetter: true, notes: "Lower fees reduce upfront costs"},
	{field: "loanAmountMin", lowerIsBetter: true, notes: "Lower minimum amount allows smaller loans"},
	{field: "loanAmountMax", notes: "Higher maximum amount provides more borrowing flexibility"},
	{field: "termMin", lowerIsBetter: true, notes: "Shorter minimum term allows quicker payoff"},
	{field: "termMax", notes: "Longer maximum term allows lower monthly payments"},
}

// savings and deposits earn interest, so a higher rate wins there
var depositCriterion = criterion{field: "interestRate", notes: "Higher interest rate means more earned on deposits"}

type comparisonService struct {
	schema      *catalog.SchemaDescriptor
	retriever   executor.StructuredRetriever
	generator   *response.Generator
	sessionRepo *memory.SessionRepository
	cache       cache.Client
	ttl         time.Duration
	logger      logger.ILogger
}

func NewComparisonService(
	schema *catalog.SchemaDescriptor,
	retriever executor.StructuredRetriever,
	generator *response.Generator,
	sessionRepo *memory.SessionRepository,
	comparisonCache cache.Client,
	ttl time.Duration,
	logger logger.ILogger,
) IComparisonService {
	if ttl <= 0 {
		ttl = DefaultComparisonTTL
	}
	if comparisonCache == nil {
		comparisonCache = cache.NewMemoryClient(ttl)
	}
	return &comparisonService{
		schema:      schema,
		retriever:   retriever,
		generator:   generator,
		sessionRepo: sessionRepo,
		cache:       comparisonCache,
		ttl:         ttl,
		logger:      logger,
	}
}

func (s *comparisonService) Compare(ctx context.Context, in dto.CompareInput) (*dto.ComparisonResponse, error) {
	ctx, span := otel.Tracer("finverse-chatbot/comparison").Start(ctx, "comparison.compare")
	defer span.End()
	span.SetAttributes(attribute.Int("comparison.products", len(in.ProductIds)))

	if len(in.ProductIds) < 2 {
		return nil, ErrTooFewProductsFound
	}
	for _, f := range in.Fields {
		if _, ok := criterionFor(f); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownComparisonField, f)
		}
	}

	setKey := comparisonSetKey(in.ProductIds, in.Fields)
	if cached, ok := s.load(ctx, setKey); ok {
		cached.Cached = true
		cached.ConversationId = in.ConversationId
		s.record(in.ConversationId, cached)
		span.SetAttributes(attribute.Bool("comparison.cached", true))
		return cached, nil
	}

	ids := make([]string, len(in.ProductIds))
	for i, id := range in.ProductIds {
		ids[i] = id.String()
	}
	result, err := s.retriever.Retrieve(ctx, &structured.Plan{
		TargetTable: catalog.TableProducts,
		Filters:     []structured.Filter{{Field: "productId", Operator: structured.OpIn, Value: ids}},
		Projection:  comparisonProjection(),
		Limit:       len(ids),
	})
	if err != nil {
		return nil, fmt.Errorf("retrieve compared products: %w", err)
	}
	rows := orderRows(result.Rows, ids)
	if len(rows) < 2 {
		return nil, ErrTooFewProductsFound
	}

	table := s.buildTable(rows, in.Fields)
	res := &dto.ComparisonResponse{
		Status:       "success",
		ComparisonId: uuid.NewString(),
		Comparison:   table,
		Products:     comparedProducts(rows),
	}

	var history []store.Turn
	if in.ConversationId != "" {
		history = s.sessionRepo.History(in.ConversationId, 0)
	}
	answer := s.generator.Generate(ctx, response.Input{
		Message:   comparisonQuestion(res.Products),
		QueryType: intent.QueryTypeSQL,
		Rows:      rows,
		History:   history,
	})
	res.Summary = answer.Text
	if answer.Failed {
		res.Summary = describeComparison(table)
	}

	s.store(ctx, comparisonKey(res.ComparisonId), res)
	s.store(ctx, setKey, res)

	res.ConversationId = in.ConversationId
	s.record(in.ConversationId, res)

	s.logger.Info("COMPARISON", "Products compared", map[string]interface{}{
		"comparison_id": res.ComparisonId,
		"products":      len(rows),
		"fields":        len(table.Fields),
		"llm_failed":    answer.Failed,
	})
	return res, nil
}

func (s *comparisonService) Get(ctx context.Context, comparisonId string) (*dto.ComparisonResponse, error) {
	res, ok := s.load(ctx, comparisonKey(comparisonId))
	if !ok {
		return nil, ErrComparisonNotFound
	}
	res.Cached = true
	return res, nil
}

// buildTable lays out the requested fields, or every field at least one product has a value for
func (s *comparisonService) buildTable(rows []structured.Row, requested []string) dto.ComparisonTable {
	deposits := allDeposits(rows)

	var criteria []criterion
	if len(requested) > 0 {
		for _, f := range requested {
			c, _ := criterionFor(f)
			criteria = append(criteria, c)
		}
	} else {
		for _, c := range comparisonCriteria {
			if anyValue(rows, c.field) {
				criteria = append(criteria, c)
			}
		}
	}

	wins := make(map[string]int)
	judged := 0
	fields := make([]dto.ComparisonField, 0, len(criteria))
	var differences []dto.KeyDifference
	recommendations := make(map[string]dto.BestProduct)

	for _, c := range criteria {
		if c.field == "interestRate" && deposits {
			c = depositCriterion
		}

		field := dto.ComparisonField{
			FieldName:  c.field,
			FieldLabel: s.label(c.field),
			Values:     make(map[string]interface{}, len(rows)),
		}
		for _, row := range rows {
			if v, ok := row[c.field]; ok && v != nil && v != "" {
				field.Values[rowId(row)] = v
			}
		}

		if !c.categorical {
			field.Notes = c.notes
			if best, value, ok := bestOption(rows, c); ok {
				field.BestOption = best
				wins[best]++
				judged++
				if c.field == "interestRate" {
					key := "lowest_interest_rate"
					if !c.lowerIsBetter {
						key = "highest_interest_rate"
					}
					recommendations[key] = bestProduct(rows, best, value)
				}
			}
			if diff, ok := keyDifference(rows, c.field, field.FieldLabel); ok {
				differences = append(differences, diff)
			}
		}
		fields = append(fields, field)
	}

	summary := dto.ComparisonSummary{
		TotalProducts:           len(rows),
		InstitutionsRepresented: len(distinct(rows, "institution")),
		ProductTypes:            distinct(rows, "productType"),
		Recommendations:         recommendations,
		KeyDifferences:          differences,
	}
	if summary.KeyDifferences == nil {
		summary.KeyDifferences = []dto.KeyDifference{}
	}

	// ties go to the product listed first
	bestId, bestWins := "", 0
	for _, row := range rows {
		if n := wins[rowId(row)]; n > bestWins {
			bestId, bestWins = rowId(row), n
		}
	}
	if bestWins > 0 {
		overall := bestProduct(rows, bestId, nil)
		overall.Wins = bestWins
		overall.TotalCriteria = judged
		summary.OverallBest = &overall
	}

	return dto.ComparisonTable{Fields: fields, Summary: summary}
}

func (s *comparisonService) label(field string) string {
	if t, ok := s.schema.Table(catalog.TableProducts); ok {
		if f, ok := t.Field(field); ok {
			return f.Label
		}
	}
	return field
}

// record appends the comparison to the conversation so follow-up chat can refer to it
func (s *comparisonService) record(conversationId string, res *dto.ComparisonResponse) {
	if conversationId == "" {
		return
	}
	now := time.Now()
	s.sessionRepo.Append(conversationId, store.Turn{
		Role:      store.RoleUser,
		Text:      comparisonQuestion(res.Products),
		Timestamp: now,
		QueryType: string(intent.QueryTypeSQL),
	})
	s.sessionRepo.Append(conversationId, store.Turn{
		Role:      store.RoleAssistant,
		Text:      res.Summary,
		Timestamp: now,
		QueryType: string(intent.QueryTypeSQL),
	})
}

func (s *comparisonService) load(ctx context.Context, key string) (*dto.ComparisonResponse, bool) {
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("COMPARISON", "Comparison cache read failed", map[string]interface{}{"error": err.Error()})
		}
		return nil, false
	}
	var res dto.ComparisonResponse
	if err := json.Unmarshal(raw, &res); err != nil {
		s.logger.Warn("COMPARISON", "Discarding unreadable cached comparison", map[string]interface{}{"key": key, "error": err.Error()})
		return nil, false
	}
	return &res, true
}

// store caches without the conversation id; a failed write only costs a recomputation
func (s *comparisonService) store(ctx context.Context, key string, res *dto.ComparisonResponse) {
	snapshot := *res
	snapshot.ConversationId = ""
	snapshot.Cached = false
	raw, err := json.Marshal(snapshot)
	if err != nil {
		s.logger.Error("COMPARISON", "Failed to encode comparison", map[string]interface{}{"error": err.Error()})
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.ttl); err != nil {
		s.logger.Warn("COMPARISON", "Comparison cache write failed", map[string]interface{}{"error": err.Error()})
	}
}

func criterionFor(field string) (criterion, bool) {
	for _, c := range comparisonCriteria {
		if c.field == field {
			return c, true
		}
	}
	return criterion{}, false
}

func comparisonProjection() []string {
	projection := []string{"productId", "name", "category"}
	for _, c := range comparisonCriteria {
		projection = append(projection, c.field)
	}
	return projection
}

func comparisonKey(id string) string {
	return "comparison:" + id
}

// comparisonSetKey is the same for the same products and fields in any order
func comparisonSetKey(ids []uuid.UUID, fields []string) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	sort.Strings(parts)
	sortedFields := append([]string(nil), fields...)
	sort.Strings(sortedFields)
	return "comparison:set:" + strings.Join(parts, ",") + "|" + strings.Join(sortedFields, ",")
}

// orderRows returns rows in the order the client asked for them
func orderRows(rows []structured.Row, ids []string) []structured.Row {
	byId := make(map[string]structured.Row, len(rows))
	for _, row := range rows {
		byId[rowId(row)] = row
	}
	ordered := make([]structured.Row, 0, len(rows))
	for _, id := range ids {
		if row, ok := byId[id]; ok {
			ordered = append(ordered, row)
		}
	}
	return ordered
}

func bestOption(rows []structured.Row, c criterion) (string, float64, bool) {
	bestId, best, found, differs := "", 0.0, false, false
	for _, row := range rows {
		v, ok := numberValue(row[c.field])
		if !ok {
			continue
		}
		if !found {
			bestId, best, found = rowId(row), v, true
			continue
		}
		if v != best {
			differs = true
		}
		if (c.lowerIsBetter && v < best) || (!c.lowerIsBetter && v > best) {
			bestId, best = rowId(row), v
		}
	}
	// a field where every product is equal has no winner
	if !found || !differs {
		return "", 0, false
	}
	return bestId, best, true
}

func keyDifference(rows []structured.Row, field, label string) (dto.KeyDifference, bool) {
	var values []float64
	for _, row := range rows {
		if v, ok := numberValue(row[field]); ok {
			values = append(values, v)
		}
	}
	if len(values) < 2 {
		return dto.KeyDifference{}, false
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo == hi {
		return dto.KeyDifference{}, false
	}
	diff := dto.KeyDifference{Field: field, Label: label, MinValue: lo, MaxValue: hi}
	if lo > 0 {
		diff.DifferencePercentage = math.Round((hi-lo)/lo*10000) / 100
	}
	return diff, true
}

func bestProduct(rows []structured.Row, id string, value interface{}) dto.BestProduct {
	for _, row := range rows {
		if rowId(row) == id {
			return dto.BestProduct{
				ProductId:   id,
				ProductName: stringValue(row["name"]),
				Institution: stringValue(row["institution"]),
				Value:       value,
			}
		}
	}
	return dto.BestProduct{ProductId: id, Value: value}
}

func comparedProducts(rows []structured.Row) []dto.ComparedProduct {
	out := make([]dto.ComparedProduct, len(rows))
	for i, row := range rows {
		out[i] = dto.ComparedProduct{
			Id:          rowId(row),
			Name:        stringValue(row["name"]),
			Institution: stringValue(row["institution"]),
			ProductType: stringValue(row["productType"]),
			Category:    stringValue(row["category"]),
		}
	}
	return out
}

func comparisonQuestion(products []dto.ComparedProduct) string {
	names := make([]string, len(products))
	for i, p := range products {
		names[i] = p.Name
		if p.Institution != "" {
			names[i] += " (" + p.Institution + ")"
		}
	}
	return "Compare these products: " + strings.Join(names, ", ")
}

// describeComparison is the summary used when the model is unavailable
func describeComparison(table dto.ComparisonTable) string {
	sum := table.Summary
	text := fmt.Sprintf("Compared %d products from %d institutions.", sum.TotalProducts, sum.InstitutionsRepresented)
	if best := sum.OverallBest; best != nil {
		text += fmt.Sprintf(" %s from %s comes out ahead on %d of %d criteria.", best.ProductName, best.Institution, best.Wins, best.TotalCriteria)
	}
	return text
}

func allDeposits(rows []structured.Row) bool {
	for _, row := range rows {
		kind := strings.ToLower(stringValue(row["category"]) + " " + stringValue(row["productType"]))
		if !strings.Contains(kind, "saving") && !strings.Contains(kind, "deposit") {
			return false
		}
	}
	return len(rows) > 0
}

func anyValue(rows []structured.Row, field string) bool {
	for _, row := range rows {
		if v, ok := row[field]; ok && v != nil && v != "" {
			return true
		}
	}
	return false
}

func distinct(rows []structured.Row, field string) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, row := range rows {
		v := stringValue(row[field])
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func rowId(row structured.Row) string {
	return stringValue(row["productId"])
}

func stringValue(v interface{}) string {
	s, _ := v.(string)
	return s
}

func numberValue(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
