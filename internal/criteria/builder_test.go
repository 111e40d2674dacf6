package criteria

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/catalog-search/internal/domain"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func hasActiveLeaf(n Node) bool {
	for _, l := range n.Leaves() {
		if l.Op == OpEquals && l.Field == FieldIsActive {
			if b, ok := l.Bool(); ok && b {
				return true
			}
		}
	}
	return false
}

func TestBuild_AlwaysContainsActiveLeaf(t *testing.T) {
	requests := []domain.SearchRequest{
		{},
		{Query: "phone"},
		{Category: "books"},
		{MinPrice: dec("1")},
		{MaxPrice: dec("2")},
		{Query: "laptop", Category: "Elektronik", MinPrice: dec("40000"), MaxPrice: dec("80000")},
		{Query: "   ", Category: "\t"},
	}
	for _, req := range requests {
		tree := Build(req)
		assert.Equal(t, OpAnd, tree.Op, tree.String())
		assert.True(t, hasActiveLeaf(tree), tree.String())
		assert.Equal(t, Active(), tree.Children[len(tree.Children)-1])
	}
}

func TestBuild_EmptyRequestYieldsOnlyActiveFilter(t *testing.T) {
	tree := Build(domain.SearchRequest{})
	leaves := tree.Leaves()
	require.Len(t, leaves, 1)
	assert.Equal(t, Active(), leaves[0])
	assert.Equal(t, "and(equals(is_active,true))", tree.String())
}

func TestBuild_QueryBuildsOrGroupOverThreeFields(t *testing.T) {
	tree := Build(domain.SearchRequest{Query: "phone"})
	require.Len(t, tree.Children, 2)

	or := tree.Children[0]
	assert.Equal(t, OpOr, or.Op)
	require.Len(t, or.Children, 3)

	var fields []Field
	for _, c := range or.Children {
		assert.Equal(t, OpContains, c.Op)
		assert.Equal(t, "phone", c.Text())
		fields = append(fields, c.Field)
	}
	assert.Equal(t, []Field{FieldName, FieldDescription, FieldTags}, fields)
}

func TestBuild_PriceBoundsAreExact(t *testing.T) {
	tree := Build(domain.SearchRequest{MinPrice: dec("100.00"), MaxPrice: dec("500")})
	require.Len(t, tree.Children, 2)

	r := tree.Children[0]
	assert.Equal(t, OpRange, r.Op)
	assert.Equal(t, FieldPrice, r.Field)
	require.NotNil(t, r.Min)
	require.NotNil(t, r.Max)
	assert.True(t, r.Min.Equal(decimal.NewFromInt(100)))
	assert.True(t, r.Max.Equal(decimal.NewFromInt(500)))
}

func TestBuild_OpenEndedRange(t *testing.T) {
	tree := Build(domain.SearchRequest{MaxPrice: dec("50")})
	r := tree.Children[0]
	assert.Nil(t, r.Min)
	assert.Equal(t, "range(price,*,50)", r.String())
}

func TestBuild_MinAboveMaxPassesThrough(t *testing.T) {
	tree := Build(domain.SearchRequest{MinPrice: dec("500"), MaxPrice: dec("100")})
	r := tree.Children[0]
	assert.Equal(t, "500", r.Min.String())
	assert.Equal(t, "100", r.Max.String())
}

func TestBuild_BlankStringsAreAbsent(t *testing.T) {
	assert.Equal(t, Build(domain.SearchRequest{}), Build(domain.SearchRequest{Query: "  ", Category: " \n"}))
}

func TestBuild_FixedChildOrder(t *testing.T) {
	req := domain.SearchRequest{Query: "laptop", Category: "Elektronik", MinPrice: dec("40000"), MaxPrice: dec("80000")}
	tree := Build(req)

	var ops []Op
	for _, c := range tree.Children {
		ops = append(ops, c.Op)
	}
	assert.Equal(t, []Op{OpOr, OpEquals, OpRange, OpEquals}, ops)
	assert.Equal(t,
		`and(or(contains(name,"laptop"),contains(description,"laptop"),contains(tags,"laptop")),equals(category,"Elektronik"),range(price,40000,80000),equals(is_active,true))`,
		tree.String())
}

func TestBuild_Deterministic(t *testing.T) {
	req := domain.SearchRequest{Query: "phone", Category: "Elektronik", MinPrice: dec("1")}
	assert.Equal(t, Build(req), Build(req))
	assert.Equal(t, Build(req).String(), Build(req).String())
}

func TestTextQuery(t *testing.T) {
	assert.Equal(t, `or(contains(name,"lamp"),contains(description,"lamp"))`, TextQuery("lamp").String())
}

func TestFuzzyQuery(t *testing.T) {
	tree := FuzzyQuery("iphne")
	assert.Equal(t, `and(fuzzy(name,"iphne"),equals(is_active,true))`, tree.String())
	assert.True(t, hasActiveLeaf(tree))
}
