package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/v0idness/archipanion-ve/internal/db"
	"github.com/v0idness/archipanion-ve/internal/domain/query/filter"
)

// SearchKNN runs a KNN vector similarity search via FT.SEARCH.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, errors.New("index name is required")
	}
	if len(q.Vector) == 0 {
		return nil, errors.New("vector is required")
	}
	if q.K <= 0 {
		return nil, errors.New("k must be positive")
	}
	vectorField := q.VectorField
	if vectorField == "" {
		vectorField = "vector"
	}

	knnPart := fmt.Sprintf("[KNN %d @%s $BLOB]", q.K, vectorField)
	queryStr := "*=>" + knnPart
	if filterStr := buildFilter(q.Filters); filterStr != "" {
		queryStr = fmt.Sprintf("(%s)=>%s", filterStr, knnPart)
	}

	args := []string{q.IndexName, queryStr}
	if fields := returnFields(q.ReturnFields, q.IncludeVector, vectorField); len(fields) > 0 {
		args = append(args, "RETURN", strconv.Itoa(len(fields)+1))
		args = append(args, fields...)
		args = append(args, "__vector_score")
	}
	args = append(args,
		"SORTBY", "__vector_score", "ASC",
		"LIMIT", "0", strconv.Itoa(q.K),
		"PARAMS", "2", "BLOB", db.EncodeVector(q.Vector),
		"DIALECT", "2",
	)

	raw, err := s.do(ctx, s.b().Arbitrary("FT.SEARCH").Args(args...).Build()).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}
	return parseKNNResult(raw, q.RawScores)
}

// SearchFiltered returns documents matching a boolean pre-filter, unscored.
func (s *Store) SearchFiltered(ctx context.Context, q *db.FilterQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, errors.New("index name is required")
	}
	if q.Limit <= 0 {
		return nil, errors.New("limit must be positive")
	}

	queryStr := buildFilter(q.Filters)
	if queryStr == "" {
		queryStr = "*"
	}

	args := []string{q.IndexName, queryStr}
	if len(q.ReturnFields) > 0 {
		args = append(args, "RETURN", strconv.Itoa(len(q.ReturnFields)))
		args = append(args, q.ReturnFields...)
	}
	args = append(args, "LIMIT", strconv.Itoa(q.Offset), strconv.Itoa(q.Limit), "DIALECT", "2")

	raw, err := s.do(ctx, s.b().Arbitrary("FT.SEARCH").Args(args...).Build()).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}
	return parseListResult(raw)
}

// SearchCount returns document count via FT.SEARCH with LIMIT 0 0.
func (s *Store) SearchCount(ctx context.Context, index, query string) (int, error) {
	cmd := s.b().Arbitrary("FT.SEARCH").Args(index, query, "LIMIT", "0", "0").Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return 0, &db.Error{Op: db.OpSearch, Err: err}
	}
	if len(raw) == 0 {
		return 0, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return 0, fmt.Errorf("parse count: %w", err)
	}
	return int(total), nil
}

func returnFields(fields []string, includeVector bool, vectorField string) []string {
	if len(fields) == 0 {
		return nil
	}
	out := append([]string(nil), fields...)
	if includeVector {
		out = append(out, vectorField)
	}
	return out
}

// --- Result parsing ---

func parseKNNResult(raw []rueidis.RedisMessage, rawScores bool) (*db.SearchResult, error) {
	res, err := parseListResult(raw)
	if err != nil {
		return nil, err
	}
	for i := range res.Entries {
		e := &res.Entries[i]
		scoreStr, ok := e.Fields["__vector_score"]
		if !ok {
			continue
		}
		if s, err := strconv.ParseFloat(scoreStr, 64); err == nil {
			if rawScores {
				e.Score = s
			} else {
				e.Score = max(0, 1.0-s) // cosine distance → similarity, clamped to [0,1]
			}
		}
		delete(e.Fields, "__vector_score")
	}
	return res, nil
}

func parseListResult(raw []rueidis.RedisMessage) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return &db.SearchResult{}, nil
	}

	entries := make([]db.SearchEntry, 0, len(raw)/2)
	// 2-stride: [total, key1, fields1, key2, fields2, ...]
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		fields, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}
		entries = append(entries, db.SearchEntry{Key: key, Fields: parseFieldPairs(fields)})
	}

	return &db.SearchResult{Total: int(total), Entries: entries}, nil
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

// --- Filter building ---

// buildFilter translates filter.Expression into an FT.SEARCH query string.
func buildFilter(expr filter.Expression) string {
	if expr.IsEmpty() {
		return ""
	}

	var parts []string
	for _, cond := range expr.Must() {
		parts = append(parts, buildCondition(cond))
	}
	if shouldParts := buildShouldGroup(expr.Should()); shouldParts != "" {
		parts = append(parts, shouldParts)
	}
	for _, cond := range expr.MustNot() {
		parts = append(parts, "-"+buildCondition(cond))
	}
	if len(expr.Must()) == 0 && len(expr.Should()) == 0 {
		// a purely negative query needs a positive term to subtract from
		parts = append([]string{"*"}, parts...)
	}
	return strings.Join(parts, " ")
}

func buildCondition(cond filter.Condition) string {
	if cond.IsMatch() {
		return fmt.Sprintf("@%s:{%s}", cond.Key(), tagEscaper.Replace(cond.Match()))
	}
	if cond.IsPattern() {
		return fmt.Sprintf("@%s:{w'%s'}", cond.Key(), patternEscaper.Replace(cond.Pattern()))
	}
	if cond.IsRange() {
		return buildNumericFilter(cond.Key(), *cond.Range())
	}
	return ""
}

func buildShouldGroup(conditions []filter.Condition) string {
	if len(conditions) == 0 {
		return ""
	}
	parts := make([]string, 0, len(conditions))
	for _, cond := range conditions {
		parts = append(parts, buildCondition(cond))
	}
	return "(" + strings.Join(parts, " | ") + ")"
}

func buildNumericFilter(key string, r filter.Range) string {
	minBound := "-inf"
	maxBound := "+inf"

	if r.GT() != nil {
		minBound = fmt.Sprintf("(%g", *r.GT())
	} else if r.GTE() != nil {
		minBound = fmt.Sprintf("%g", *r.GTE())
	}

	if r.LT() != nil {
		maxBound = fmt.Sprintf("(%g", *r.LT())
	} else if r.LTE() != nil {
		maxBound = fmt.Sprintf("%g", *r.LTE())
	}

	return fmt.Sprintf("@%s:[%s %s]", key, minBound, maxBound)
}

var tagEscaper = strings.NewReplacer(
	",", "\\,", ".", "\\.", "<", "\\<", ">", "\\>", "{", "\\{", "}", "\\}",
	"\"", "\\\"", "'", "\\'", ":", "\\:", ";", "\\;", "!", "\\!", "@", "\\@",
	"#", "\\#", "$", "\\$", "%", "\\%", "^", "\\^", "&", "\\&", "*", "\\*",
	"(", "\\(", ")", "\\)", "-", "\\-", "+", "\\+", "=", "\\=", "~", "\\~",
	"/", "\\/", "|", "\\|", " ", "\\ ",
)

// patternEscaper quotes the characters that would end a w'...' wildcard term.
var patternEscaper = strings.NewReplacer(`\`, `\\`, "'", `\'`)
