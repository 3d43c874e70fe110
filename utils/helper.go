package utils

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/bsm/redislock"
	"github.com/go-playground/validator/v10"
	"github.com/mmdatafocus/stock_backend/config"
	"github.com/shopspring/decimal"
)

var ErrLockNotObtained = errors.New("could not obtain run lock")

// ParseDecimal converts a string to a decimal.Decimal value.
func ParseDecimal(value string) (decimal.Decimal, error) {
	// Remove any whitespace and check for empty strings
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, errors.New("empty decimal string")
	}

	// Spreadsheet exports sometimes use a decimal comma
	if strings.Count(value, ",") == 1 && !strings.Contains(value, ".") {
		value = strings.Replace(value, ",", ".", 1)
	}

	dec, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, err
	}

	return dec, nil
}

// ParseIntOrZero coerces a raw cell into an integer, truncating toward zero.
// Blanks, "N/A" and anything else unparseable become 0.
func ParseIntOrZero(value string) int {
	return ParseIntOr(value, 0)
}

func ParseIntOr(value string, def int) int {
	dec, err := ParseDecimal(value)
	if err != nil {
		return def
	}
	dec = dec.Truncate(0)
	if dec.GreaterThan(decimal.NewFromInt(math.MaxInt)) || dec.LessThan(decimal.NewFromInt(math.MinInt)) {
		return def
	}
	return int(dec.IntPart())
}

// ParseFloatOrZero coerces a raw cell into a float, 0 when unparseable.
func ParseFloatOrZero(value string) float64 {
	dec, err := ParseDecimal(value)
	if err != nil {
		return 0
	}
	f, _ := dec.Float64()
	return f
}

// CleanCode trims a product code and drops internal whitespace.
func CleanCode(value string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, value)
}

// CleanBarcode strips the ".0" float artifact and internal whitespace.
func CleanBarcode(value string) string {
	value = CleanCode(value)
	if strings.EqualFold(value, "nan") {
		return ""
	}
	return strings.TrimSuffix(value, ".0")
}

func ProcessValidationErrors(err error) map[string]string {
	errorResponse := make(map[string]string)

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return errorResponse
	}
	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = ve.Tag()
	}

	return errorResponse
}

func NewTrue() *bool {
	b := true
	return &b
}

// returns slice removing duplicate elements
func UniqueSlice[T comparable](slice []T) []T {
	inResult := make(map[T]bool)
	var result []T
	for _, elm := range slice {
		if _, ok := inResult[elm]; !ok {
			inResult[elm] = true
			result = append(result, elm)
		}
	}
	return result
}

// ObtainRunLock takes the cross-process lock for lockType:key. It returns a
// release func; when Redis is not configured the lock is skipped.
func ObtainRunLock(ctx context.Context, lockType string, key string, ttl time.Duration, moduleName string, functionName string) (func(), error) {
	logger := config.GetLogger()
	locker := config.GetRedisLock()
	if locker == nil {
		logger.WithField("lock", lockType).Debug("redis lock not initialized, running unlocked")
		return func() {}, nil
	}
	lockKey := fmt.Sprintf("%s:%s", lockType, key)
	lock, err := locker.Obtain(ctx, lockKey, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		config.LogError(logger, moduleName, functionName, "Could not obtain run lock", lockKey, err)
		return nil, ErrLockNotObtained
	} else if err != nil {
		config.LogError(logger, moduleName, functionName, "Error obtaining run lock", lockKey, err)
		return nil, err
	}
	return func() {
		// release with a fresh context, the run context may already be cancelled
		_ = lock.Release(context.Background())
	}, nil
}
