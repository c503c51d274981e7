// Package loader reads mission documents from disk. A file's extension
// selects its format: .json for JSON, .hcl for HCL, anything else is parsed
// as YAML. Every loaded mission is validated before it is returned.
package loader
