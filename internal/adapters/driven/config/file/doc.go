// Package file provides file-based configuration adapters.
//
// Adapters:
//   - LoadSettings / SaveSettings: folio.toml or folio.yaml settings with environment overlay
//   - PromptStore: user-editable prompt templates under the corpus
package file
