package mcpserver

// FormatResourceURI addresses the ArchiveFormat resource.
const FormatResourceURI = "melaconv://archive-format"

// ArchiveFormat describes both archive layouts and how fields map between
// them, for LLM consumers preparing or checking conversions.
const ArchiveFormat = `# melaconv Archive Format

## Source: Mela export (` + "`" + `.melarecipes` + "`" + `)

A zip archive. Every entry is one recipe stored as uncompressed UTF-8 JSON.

- Entry names MUST match ` + "`" + `<ordinal>-<title>.melarecipe` + "`" + `
  (for example ` + "`" + `0-Pancakes.melarecipe` + "`" + `). The title may contain dashes.
- ` + "`" + `id` + "`" + ` and ` + "`" + `title` + "`" + ` are required. Every other field may be absent.
- ` + "`" + `date` + "`" + ` is seconds since 2001-01-01T00:00:00Z, with a fraction.
- ` + "`" + `images` + "`" + ` holds base64 image data; only the first image is used.

## Target: Paprika import (` + "`" + `.paprikarecipes` + "`" + `)

A zip archive. Every entry is one recipe: JSON, gzip-compressed, stored in the
zip without further compression. Entry names are ` + "`" + `<name>.paprikarecipe` + "`" + `
with ` + "`" + `/` + "`" + ` replaced by ` + "`" + `_` + "`" + `.

## Field mapping

| Target | Source |
|--------|--------|
| uid | new upper-case UUID |
| name | title |
| directions | instructions |
| servings | yield |
| rating | 5 when favorite, otherwise 0 |
| difficulty | empty |
| ingredients | ingredients |
| notes | notes |
| created | date, local time ` + "`" + `YYYY-MM-DD HH:MM:SS` + "`" + ` |
| image_url | empty |
| cook_time / prep_time / total_time | cookTime / prepTime / totalTime |
| source | host of link, or null |
| source_url | link |
| hash | SHA-256 hex of the source id |
| photo_hash | SHA-256 hex of the decoded first image, or null |
| photo_data | first image, or null |
| photo_large / photo | always null |
| description | text |
| nutritional_info | nutrition |
| categories | categories |
| photos | always empty |

## Failure behaviour

Conversion stops at the first entry that fails. The error names the stage
(` + "`" + `read` + "`" + `, ` + "`" + `map` + "`" + `, ` + "`" + `write` + "`" + `) and the entry. No partial output archive is left.
`
