package file

const createSchema = `{
  "type": "object",
  "required": ["path"],
  "properties": {
    "path": {"type": "string", "minLength": 1},
    "content": {"type": "string"}
  }
}`

const editSchema = `{
  "type": "object",
  "required": ["path"],
  "properties": {
    "path": {"type": "string", "minLength": 1},
    "content": {"type": "string"},
    "find": {"type": "string"},
    "replace": {"type": "string"},
    "append": {"type": "boolean"}
  }
}`

const deleteSchema = `{
  "type": "object",
  "required": ["path"],
  "properties": {
    "path": {"type": "string", "minLength": 1},
    "recursive": {"type": "boolean"}
  }
}`

const transferSchema = `{
  "type": "object",
  "required": ["source", "destination"],
  "properties": {
    "source": {"type": "string", "minLength": 1},
    "destination": {"type": "string", "minLength": 1}
  }
}`

const readSchema = `{
  "type": "object",
  "required": ["path"],
  "properties": {
    "path": {"type": "string", "minLength": 1},
    "max_bytes": {"type": "integer", "minimum": 0}
  }
}`

const listSchema = `{
  "type": "object",
  "properties": {
    "path": {"type": "string"},
    "recursive": {"type": "boolean"},
    "include_hidden": {"type": "boolean"}
  }
}`

const searchSchema = `{
  "type": "object",
  "properties": {
    "path": {"type": "string"},
    "pattern": {"type": "string"},
    "contains": {"type": "string"},
    "max_results": {"type": "integer", "minimum": 0}
  }
}`
