package markdoll

import "github.com/hesusruiz/vcutils/yaml"

// ParseFrontmatter is a convenience layered on top of the verbatim
// frontmatter string ParseDocument returns: it hands that string to the same
// YAML parser the teacher's frontmatter handling uses
// (github.com/hesusruiz/vcutils/yaml, see rite/parser.go's
// PreprocessYAMLHeader/p.Config) so a caller who wants structured access
// doesn't have to depend on vcutils directly.
//
// This never changes what ParseDocument itself returns for frontmatter —
// that stays the verbatim slice the spec mandates — it is purely additive.
func ParseFrontmatter(raw string) (*yaml.YAML, error) {
	return yaml.ParseYaml(raw)
}
