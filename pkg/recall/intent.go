package recall

import (
	"regexp"
	"strings"

	"github.com/rajat1299/memoire/pkg/fuzzy"
	"github.com/rajat1299/memoire/pkg/models"
)

// intentHints maps query tokens to the categories they imply. A token can
// hint more than one category.
var intentHints = map[string][]models.FactCategory{
	// Biographical / location.
	"where":    {models.CategoryBiographical},
	"live":     {models.CategoryBiographical},
	"lives":    {models.CategoryBiographical},
	"living":   {models.CategoryBiographical},
	"location": {models.CategoryBiographical},
	"city":     {models.CategoryBiographical},
	"move":     {models.CategoryBiographical},
	"moved":    {models.CategoryBiographical},
	// Work context.
	"job":        {models.CategoryWorkContext},
	"jobs":       {models.CategoryWorkContext},
	"profession": {models.CategoryWorkContext},
	"work":       {models.CategoryWorkContext},
	"working":    {models.CategoryWorkContext},
	"role":       {models.CategoryWorkContext},
	"employer":   {models.CategoryWorkContext},
	"company":    {models.CategoryWorkContext},
	"companies":  {models.CategoryWorkContext},
	// Preferences.
	"like":        {models.CategoryUserPreference},
	"likes":       {models.CategoryUserPreference},
	"love":        {models.CategoryUserPreference},
	"loves":       {models.CategoryUserPreference},
	"enjoy":       {models.CategoryUserPreference},
	"enjoys":      {models.CategoryUserPreference},
	"hobby":       {models.CategoryUserPreference},
	"hobbies":     {models.CategoryUserPreference},
	"prefer":      {models.CategoryUserPreference},
	"prefers":     {models.CategoryUserPreference},
	"preference":  {models.CategoryUserPreference},
	"preferences": {models.CategoryUserPreference},
	"favorite":    {models.CategoryUserPreference},
	"favourites":  {models.CategoryUserPreference},
	// Learning.
	"learning": {models.CategoryLearning, models.CategoryUserPreference},
	"studying": {models.CategoryLearning, models.CategoryUserPreference},
	"study":    {models.CategoryLearning, models.CategoryUserPreference},
	"course":   {models.CategoryLearning},
	"courses":  {models.CategoryLearning},
	"class":    {models.CategoryLearning},
	// Relationships.
	"girlfriend": {models.CategoryRelationship},
	"boyfriend":  {models.CategoryRelationship},
	"spouse":     {models.CategoryRelationship},
	"partner":    {models.CategoryRelationship},
	"wife":       {models.CategoryRelationship},
	"husband":    {models.CategoryRelationship},
	"friend":     {models.CategoryRelationship},
	"friends":    {models.CategoryRelationship},
}

// hintCategories extracts category hints from the query tokens. Punctuation
// is stripped so "girlfriend?" still matches.
func hintCategories(query string) map[models.FactCategory]bool {
	hinted := make(map[models.FactCategory]bool)
	for _, token := range fuzzy.Tokenize(query) {
		for _, category := range intentHints[token] {
			hinted[category] = true
		}
	}
	return hinted
}

// genericQueryPatterns match self-description prompts. Relaxed on purpose:
// no anchors, punctuation-tolerant, matched anywhere in the query.
var genericQueryPatterns = []*regexp.Regexp{
	regexp.MustCompile(`tell me about (myself|me)\b`),
	regexp.MustCompile(`what .* know about me\b`),
	regexp.MustCompile(`\bwho am i\b`),
	regexp.MustCompile(`summarize (me|myself|my profile|my information)\b`),
	regexp.MustCompile(`what .* remember about me\b`),
	regexp.MustCompile(`everything (.* )?about me\b`),
	regexp.MustCompile(`\b(my|about my) (profile|information|details|summary)\b`),
	regexp.MustCompile(`\bdescribe me\b`),
}

// isGenericQuery detects "tell me about myself" style prompts. Such queries
// carry no usable intent hints; the engine answers them with a balanced
// profile slate instead of category-filtered search.
func isGenericQuery(query string) bool {
	normalized := strings.TrimRight(strings.ToLower(strings.TrimSpace(query)), "?!.")
	for _, pattern := range genericQueryPatterns {
		if pattern.MatchString(normalized) {
			return true
		}
	}
	return false
}
