package mapper

import (
	"sync"
	"testing"

	"finverse-chatbot/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

type logEntry struct {
	level   string
	message string
	details map[string]interface{}
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) record(level, message string, details map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, message: message, details: details})
}

func (l *recordingLogger) Debug(module, message string, details map[string]interface{}) {
	l.record("debug", message, details)
}

func (l *recordingLogger) Info(module, message string, details map[string]interface{}) {
	l.record("info", message, details)
}

func (l *recordingLogger) Warn(module, message string, details map[string]interface{}) {
	l.record("warn", message, details)
}

func (l *recordingLogger) Error(module, message string, details map[string]interface{}) {
	l.record("error", message, details)
}

func (l *recordingLogger) Sync() error { return nil }

func TestProductToEntity(t *testing.T) {
	log := &recordingLogger{}
	m := NewProductMapper(log)
	typeId := uuid.New()

	p := &model.Product{
		Id:            uuid.New(),
		Name:          "High Yield Savings Account",
		Details:       datatypes.JSON(`{"interestRate": 4.25, "features": ["No monthly fee"]}`),
		IsActive:      true,
		InstitutionId: uuid.New(),
		Institution:   &model.Institution{Name: "First National Bank"},
		ProductTypeId: &typeId,
		ProductType:   &model.ProductType{Name: "Savings", Category: &model.ProductCategory{Name: "Deposits"}},
	}

	e := m.ToEntity(p)
	require.NotNil(t, e)
	assert.Equal(t, "First National Bank", e.InstitutionName)
	assert.Equal(t, "Savings", e.ProductTypeName)
	assert.Equal(t, "Deposits", e.CategoryName)
	require.NotNil(t, e.Details.InterestRate)
	assert.Equal(t, 4.25, *e.Details.InterestRate)
	assert.Equal(t, []string{"No monthly fee"}, e.Details.Features)
	assert.Empty(t, log.entries)
}

func TestProductToEntityLogsMalformedDetails(t *testing.T) {
	log := &recordingLogger{}
	m := NewProductMapper(log)

	p := &model.Product{
		Id:      uuid.New(),
		Name:    "Broken",
		Details: datatypes.JSON(`{"interestRate": "high"`),
	}

	e := m.ToEntity(p)
	require.NotNil(t, e)
	assert.Nil(t, e.Details.InterestRate)

	require.Len(t, log.entries, 1)
	assert.Equal(t, "error", log.entries[0].level)
	assert.Equal(t, p.Id.String(), log.entries[0].details["product_id"])
}
