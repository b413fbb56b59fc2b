// Package intake converts search-stage output into scrape tasks.
//
// The upstream searcher emits ranked URL results grouped by sub-question;
// intake flattens them into one task list, deduplicating by raw URL string
// (first seen wins across sub-questions) and deriving stable task ids from
// the sub-question scope and URL.
package intake

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/hazyhaar/moisson/identity"
	"github.com/hazyhaar/moisson/runner"
)

// SearchResult is one ranked hit from the search stage. Score fields are
// carried into task metadata verbatim.
type SearchResult struct {
	URL            string  `json:"url"`
	Title          string  `json:"title,omitempty"`
	Snippet        string  `json:"snippet,omitempty"`
	RankScore      float64 `json:"rank_score,omitempty"`
	RelevanceScore float64 `json:"relevance_score,omitempty"`
	DomainScore    float64 `json:"domain_score,omitempty"`
	Engine         string  `json:"engine,omitempty"`
	Date           string  `json:"date,omitempty"`
}

// SubQuestionResults groups the search hits of one research sub-question.
type SubQuestionResults struct {
	SubQuestionID   string         `json:"sub_question_id"`
	SubQuestionText string         `json:"sub_question_text,omitempty"`
	Results         []SearchResult `json:"results"`
}

// DefaultTopN bounds how many results per sub-question become tasks.
const DefaultTopN = 15

// FromSearchResults flattens search output into scrape tasks. Results are
// assumed pre-sorted by rank; only the first topN per sub-question are
// considered (topN <= 0 means DefaultTopN). URLs repeated across
// sub-questions produce a single task under the first sub-question that
// listed them.
func FromSearchResults(groups []SubQuestionResults, topN int) []runner.Task {
	if topN <= 0 {
		topN = DefaultTopN
	}

	var tasks []runner.Task
	seen := make(map[string]bool)

	for _, g := range groups {
		subQID := g.SubQuestionID
		if subQID == "" {
			subQID = "unknown"
		}
		results := g.Results
		if len(results) > topN {
			results = results[:topN]
		}
		for idx, res := range results {
			if res.URL == "" || seen[res.URL] {
				continue
			}
			seen[res.URL] = true

			meta := map[string]string{
				"rank_in_results": strconv.Itoa(idx + 1),
			}
			if g.SubQuestionText != "" {
				meta["sub_question_text"] = g.SubQuestionText
			}
			if res.Title != "" {
				meta["title"] = res.Title
			}
			if res.Snippet != "" {
				meta["snippet"] = res.Snippet
			}
			if res.Engine != "" {
				meta["engine"] = res.Engine
			}
			if res.Date != "" {
				meta["date"] = res.Date
			}
			if res.RankScore != 0 {
				meta["rank_score"] = formatScore(res.RankScore)
			}
			if res.RelevanceScore != 0 {
				meta["relevance_score"] = formatScore(res.RelevanceScore)
			}
			if res.DomainScore != 0 {
				meta["domain_score"] = formatScore(res.DomainScore)
			}

			tasks = append(tasks, runner.Task{
				ID:            identity.DeriveScopedID(subQID, res.URL),
				URL:           res.URL,
				SubQuestionID: subQID,
				Meta:          meta,
			})
		}
	}
	return tasks
}

func formatScore(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// LoadTasks reads a task file. Two layouts are accepted: a plain array of
// tasks, or an array of sub-question result groups which is then flattened
// through FromSearchResults.
func LoadTasks(path string) ([]runner.Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("intake: read %s: %w", path, err)
	}

	var tasks []runner.Task
	if err := json.Unmarshal(data, &tasks); err == nil && len(tasks) > 0 && tasks[0].URL != "" {
		for i := range tasks {
			if tasks[i].ID == "" {
				tasks[i].ID = identity.DeriveScopedID(tasks[i].SubQuestionID, tasks[i].URL)
			}
		}
		return tasks, nil
	}

	var groups []SubQuestionResults
	if err := json.Unmarshal(data, &groups); err != nil {
		return nil, fmt.Errorf("intake: parse %s: %w", path, err)
	}
	return FromSearchResults(groups, 0), nil
}
