// Package dbtest provides an in-memory DynamoDB double for store tests.
package dbtest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Memory understands the handful of expressions the stores issue:
// attribute_exists / attribute_not_exists, "<name> = :value" comparisons joined by OR,
// and "SET a = :a, b = :b" updates.
type Memory struct {
	mu     sync.Mutex
	tables map[string]map[string]map[string]types.AttributeValue

	// Calls counts operations by name ("GetItem", "PutItem", ...).
	Calls map[string]int
}

func NewMemory() *Memory {
	return &Memory{
		tables: map[string]map[string]map[string]types.AttributeValue{},
		Calls:  map[string]int{},
	}
}

// Item returns a stored item, or nil.
func (m *Memory) Item(table, pk string) map[string]types.AttributeValue {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tables[table][pk]
}

// Len reports how many items a table holds.
func (m *Memory) Len(table string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tables[table])
}

func (m *Memory) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["GetItem"]++

	item := m.tables[*in.TableName][keyOf(in.Key)]
	if item == nil {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: clone(item)}, nil
}

func (m *Memory) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["PutItem"]++

	tbl := m.table(*in.TableName)
	k := keyOf(in.Item)
	if in.ConditionExpression != nil {
		if !evalCondition(*in.ConditionExpression, tbl[k], in.ExpressionAttributeNames, in.ExpressionAttributeValues) {
			return nil, &types.ConditionalCheckFailedException{Message: strPtr("The conditional request failed")}
		}
	}
	tbl[k] = clone(in.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (m *Memory) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["UpdateItem"]++

	tbl := m.table(*in.TableName)
	k := keyOf(in.Key)
	existing := tbl[k]
	if in.ConditionExpression != nil {
		if !evalCondition(*in.ConditionExpression, existing, in.ExpressionAttributeNames, in.ExpressionAttributeValues) {
			return nil, &types.ConditionalCheckFailedException{Message: strPtr("The conditional request failed")}
		}
	}
	item := clone(existing)
	if item == nil {
		item = clone(in.Key)
	}

	expr := strings.TrimSpace(*in.UpdateExpression)
	if !strings.HasPrefix(strings.ToUpper(expr), "SET ") {
		return nil, fmt.Errorf("dbtest: unsupported update expression %q", expr)
	}
	for _, part := range strings.Split(expr[4:], ",") {
		lhs, rhs, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("dbtest: bad SET clause %q", part)
		}
		name := resolveName(strings.TrimSpace(lhs), in.ExpressionAttributeNames)
		item[name] = in.ExpressionAttributeValues[strings.TrimSpace(rhs)]
	}
	tbl[k] = item
	return &dynamodb.UpdateItemOutput{}, nil
}

func (m *Memory) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["DeleteItem"]++

	delete(m.table(*in.TableName), keyOf(in.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func (m *Memory) table(name string) map[string]map[string]types.AttributeValue {
	tbl, ok := m.tables[name]
	if !ok {
		tbl = map[string]map[string]types.AttributeValue{}
		m.tables[name] = tbl
	}
	return tbl
}

func evalCondition(expr string, item map[string]types.AttributeValue, names map[string]string, values map[string]types.AttributeValue) bool {
	for _, clause := range strings.Split(expr, " OR ") {
		clause = strings.TrimSpace(clause)
		if strings.HasPrefix(clause, "attribute_not_exists(") {
			attr := resolveName(strings.TrimSuffix(strings.TrimPrefix(clause, "attribute_not_exists("), ")"), names)
			if _, ok := item[attr]; !ok {
				return true
			}
			continue
		}
		if strings.HasPrefix(clause, "attribute_exists(") {
			attr := resolveName(strings.TrimSuffix(strings.TrimPrefix(clause, "attribute_exists("), ")"), names)
			if _, ok := item[attr]; ok {
				return true
			}
			continue
		}
		lhs, rhs, ok := strings.Cut(clause, "=")
		if !ok {
			continue
		}
		attr := resolveName(strings.TrimSpace(lhs), names)
		if item != nil && equal(item[attr], values[strings.TrimSpace(rhs)]) {
			return true
		}
	}
	return false
}

func resolveName(s string, names map[string]string) string {
	if strings.HasPrefix(s, "#") {
		if n, ok := names[s]; ok {
			return n
		}
	}
	return s
}

func equal(a, b types.AttributeValue) bool {
	switch av := a.(type) {
	case *types.AttributeValueMemberS:
		bv, ok := b.(*types.AttributeValueMemberS)
		return ok && av.Value == bv.Value
	case *types.AttributeValueMemberN:
		bv, ok := b.(*types.AttributeValueMemberN)
		return ok && av.Value == bv.Value
	}
	return false
}

func keyOf(item map[string]types.AttributeValue) string {
	k := attrString(item["PK"])
	if sk, ok := item["SK"]; ok {
		k += "|" + attrString(sk)
	}
	return k
}

func attrString(av types.AttributeValue) string {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value
	case *types.AttributeValueMemberN:
		return v.Value
	}
	return ""
}

func clone(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	if item == nil {
		return nil
	}
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

func strPtr(s string) *string { return &s }
