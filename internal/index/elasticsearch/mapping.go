package elasticsearch

// DefaultIndexName is the index used for catalog items.
const DefaultIndexName = "catalog_items"

// buildIndexMapping returns the fixed mapping for the items index. Prices are
// scaled floats with two decimal places so that range bounds compare exactly.
func buildIndexMapping() string {
	return `{
  "settings": {
    "number_of_shards": 1,
    "number_of_replicas": 0,
    "analysis": {
      "analyzer": {
        "catalog_text": {
          "type": "custom",
          "tokenizer": "standard",
          "filter": ["lowercase", "asciifolding"]
        }
      }
    }
  },
  "mappings": {
    "properties": {
      "id":          { "type": "keyword" },
      "name":        { "type": "text", "analyzer": "catalog_text", "fields": { "keyword": { "type": "keyword", "ignore_above": 256 } } },
      "description": { "type": "text", "analyzer": "catalog_text" },
      "category":    { "type": "keyword" },
      "price":       { "type": "scaled_float", "scaling_factor": 100 },
      "stock":       { "type": "integer" },
      "tags":        { "type": "keyword" },
      "is_active":   { "type": "boolean" },
      "created_at":  { "type": "date" },
      "updated_at":  { "type": "date" }
    }
  }
}`
}
