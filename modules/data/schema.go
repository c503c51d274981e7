package data

const sourceSchema = `{
  "type": "object",
  "properties": {
    "content": {"type": "string"},
    "path": {"type": "string"}
  },
  "anyOf": [{"required": ["content"]}, {"required": ["path"]}]
}`

const validateSchema = `{
  "type": "object",
  "required": ["schema", "document"],
  "properties": {
    "schema": {"type": ["object", "string", "boolean"]},
    "fail_on_invalid": {"type": "boolean"}
  }
}`

const csvSchema = `{
  "type": "object",
  "properties": {
    "content": {"type": "string"},
    "path": {"type": "string"},
    "delimiter": {"type": "string"},
    "has_headers": {"type": "boolean"},
    "columns": {"type": "array", "items": {"type": "string"}},
    "filter_column": {"type": "string"},
    "filter_value": {"type": "string"},
    "limit": {"type": "integer", "minimum": 0}
  },
  "anyOf": [{"required": ["content"]}, {"required": ["path"]}]
}`
