package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testClient() *Client {
	return NewClient(nil, Config{App: "propline", Env: "test", Version: "v1", TTLs: DefaultTTLConfig()})
}

func TestEntityKeyFormat(t *testing.T) {
	c := testClient()
	assert.Equal(t, "propline:test:v1:entity:projection:abc123", c.EntityKey("projection", "abc123"))
}

func TestListKeyIsStableAcrossParamOrder(t *testing.T) {
	c := testClient()

	a := c.ListKey("projections", map[string]string{"league_id": "7", "stat_type": "points"})
	b := c.ListKey("projections", map[string]string{"stat_type": "points", "league_id": "7"})

	assert.Equal(t, a, b)
}

func TestSearchKeyDiffersByParams(t *testing.T) {
	c := testClient()

	a := c.SearchKey(map[string]string{"player": "mahomes"})
	b := c.SearchKey(map[string]string{"player": "tatum"})

	assert.NotEqual(t, a, b)
}

func TestUpstreamKeyIncludesMethodAndHost(t *testing.T) {
	c := testClient()
	key := c.UpstreamKey("GET", "api.prizepicks.com", "/projections?league_id=7")

	assert.Contains(t, key, "upstream")
	assert.Contains(t, key, "GET:api.prizepicks.com")
}

func TestKeyPrefixWithAndWithoutResource(t *testing.T) {
	c := testClient()

	assert.Equal(t, "propline:test:v1:entity", c.KeyPrefix(KeyTypeEntity, ""))
	assert.Equal(t, "propline:test:v1:entity:projection", c.KeyPrefix(KeyTypeEntity, "projection"))
}

func TestNormalizeFilterParamsDropsDefaultsAndNils(t *testing.T) {
	page := 1
	perPage := 25

	out := NormalizeFilterParams(map[string]any{
		"page":      page,
		"per_page":  perPage,
		"league_id": "",
		"player":    "tatum",
		"missing":   nil,
		"active":    true,
	})

	assert.NotContains(t, out, "page", "default page=1 should be dropped")
	assert.Equal(t, "25", out["per_page"])
	assert.NotContains(t, out, "league_id", "empty string should be dropped")
	assert.Equal(t, "tatum", out["player"])
	assert.NotContains(t, out, "missing")
	assert.Equal(t, "true", out["active"])
}

func TestNormalizeFilterParamsHandlesPointers(t *testing.T) {
	s := "NBA"
	b := false

	out := NormalizeFilterParams(map[string]any{
		"league_id": &s,
		"active":    &b,
	})

	assert.Equal(t, "NBA", out["league_id"])
	assert.Equal(t, "false", out["active"])
}
