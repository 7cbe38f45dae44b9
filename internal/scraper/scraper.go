// Package scraper pulls full article text from news sites when the
// feed only carried a teaser. Known oil outlets get dedicated
// selectors, everything else goes through a generic extractor.
package scraper

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// ArticleContent is full article content
type ArticleContent struct {
	Title   string
	Content string
	URL     string
}

type Scraper struct {
	client *http.Client
}

func New(timeout time.Duration) *Scraper {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Scraper{client: &http.Client{Timeout: timeout}}
}

// Extract gets the full text of an article by URL.
func (s *Scraper) Extract(ctx context.Context, url string) (*ArticleContent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error building request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error loading page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error parsing HTML: %w", err)
	}

	content := extractContentBySource(doc, url)
	title := extractTitle(doc)

	if content == "" {
		return nil, fmt.Errorf("can't get content")
	}

	return &ArticleContent{
		Title:   title,
		Content: content,
		URL:     url,
	}, nil
}

// extractContentBySource gets content by news site
func extractContentBySource(doc *goquery.Document, url string) string {
	var content string

	switch {
	case strings.Contains(url, "oilprice.com"):
		content = extractOilPriceContent(doc)
	case strings.Contains(url, "rigzone.com"):
		content = extractRigzoneContent(doc)
	case strings.Contains(url, "ogj.com"):
		content = extractOGJContent(doc)
	default:
		// Generic parser for other sites
		content = extractGenericContent(doc)
	}

	return cleanContent(content)
}

// extractOilPriceContent gets content from oilprice.com
func extractOilPriceContent(doc *goquery.Document) string {
	var paragraphs []string

	selectors := []string{
		"#news-content p",
		".singleArticle__content p",
		".article_content p",
		"article p",
	}

	for _, selector := range selectors {
		doc.Find(selector).Each(func(i int, s *goquery.Selection) {
			text := strings.TrimSpace(s.Text())
			if text != "" && len(text) > 10 {
				paragraphs = append(paragraphs, text)
			}
		})
		if len(paragraphs) > 0 {
			break
		}
	}

	return strings.Join(paragraphs, "\n\n")
}

// extractRigzoneContent gets content from rigzone.com
func extractRigzoneContent(doc *goquery.Document) string {
	var paragraphs []string

	selectors := []string{
		".articleBody p",
		".article-body p",
		".divArticleText p",
		"article p",
	}

	for _, selector := range selectors {
		doc.Find(selector).Each(func(i int, s *goquery.Selection) {
			text := strings.TrimSpace(s.Text())
			if text != "" && len(text) > 10 {
				paragraphs = append(paragraphs, text)
			}
		})
		if len(paragraphs) > 0 {
			break
		}
	}

	return strings.Join(paragraphs, "\n\n")
}

// extractOGJContent gets content from ogj.com
func extractOGJContent(doc *goquery.Document) string {
	var paragraphs []string

	selectors := []string{
		".article__body p",
		".content-body p",
		"article p",
	}

	for _, selector := range selectors {
		doc.Find(selector).Each(func(i int, s *goquery.Selection) {
			text := strings.TrimSpace(s.Text())
			if text != "" && len(text) > 10 {
				paragraphs = append(paragraphs, text)
			}
		})
		if len(paragraphs) > 0 {
			break
		}
	}

	return strings.Join(paragraphs, "\n\n")
}

// extractGenericContent is universal parser for any site
func extractGenericContent(doc *goquery.Document) string {
	var paragraphs []string

	// Try most popular selectors
	selectors := []string{
		"article p",
		".article p",
		".content p",
		".post-content p",
		".entry-content p",
		"main p",
		"#content p",
		".text p",
		"p",
	}

	for _, selector := range selectors {
		doc.Find(selector).Each(func(i int, s *goquery.Selection) {
			text := strings.TrimSpace(s.Text())
			if text != "" && len(text) > 20 {
				paragraphs = append(paragraphs, text)
			}
		})
		if len(paragraphs) >= 3 { // If we find 3 paragraphs, it's enough
			break
		}
	}

	return strings.Join(paragraphs, "\n\n")
}

// extractTitle gets article title
func extractTitle(doc *goquery.Document) string {
	selectors := []string{
		"h1",
		"title",
		".article-title",
		".headline",
		".entry-title",
	}

	for _, selector := range selectors {
		title := doc.Find(selector).First().Text()
		title = strings.TrimSpace(title)
		if title != "" {
			return title
		}
	}

	return ""
}

// cleanContent cleans and normalizes text with better formatting
func cleanContent(content string) string {
	if content == "" {
		return ""
	}

	// Remove HTML tags
	content = strings.ReplaceAll(content, "<br>", " ")
	content = strings.ReplaceAll(content, "<br/>", " ")
	content = strings.ReplaceAll(content, "<p>", "\n\n")
	content = strings.ReplaceAll(content, "</p>", "")

	inTag := false
	var result strings.Builder
	for _, char := range content {
		if char == '<' {
			inTag = true
		} else if char == '>' {
			inTag = false
		} else if !inTag {
			result.WriteRune(char)
		}
	}

	content = strings.TrimSpace(result.String())

	// Remove junk phrases common across news sites
	junkPhrases := []string{
		"Sign up for our free newsletter",
		"Subscribe to our newsletter",
		"Download the free Oilprice App today",
		"Join the conversation", "Share this article",
		"Read more:", "See also:", "Related:", "ADVERTISEMENT",
		"Click here to", "Follow us on",
		"Print this article", "Send to a friend", "Save article",
		"Cookie", "GDPR", "Privacy Policy", "Terms of Use",
		"All rights reserved", "Log in", "Create account",
	}

	for _, phrase := range junkPhrases {
		content = strings.ReplaceAll(content, phrase, "")
	}

	// Format paragraphs
	lines := strings.Split(content, "\n")
	var cleanLines []string
	var currentParagraph strings.Builder

	for _, line := range lines {
		line = strings.TrimSpace(line)

		// Skip empty and very short lines
		if len(line) < 8 {
			if currentParagraph.Len() > 0 {
				paragraph := strings.TrimSpace(currentParagraph.String())
				if len(paragraph) > 30 {
					cleanLines = append(cleanLines, paragraph)
				}
				currentParagraph.Reset()
			}
			continue
		}

		// Check for junk lines
		lower := strings.ToLower(line)
		isJunk := false
		junkIndicators := []string{
			"cookie", "gdpr", "advertisement", "sponsored", "read more",
			"click here", "follow us", "share this", "subscribe", "newsletter",
			"sign in", "all rights reserved",
		}

		for _, indicator := range junkIndicators {
			if strings.Contains(lower, indicator) {
				isJunk = true
				break
			}
		}

		if isJunk {
			continue
		}

		// Make sentences into paragraphs
		if strings.HasSuffix(line, ".") || strings.HasSuffix(line, "!") || strings.HasSuffix(line, "?") {
			if currentParagraph.Len() > 0 {
				currentParagraph.WriteString(" ")
			}
			currentParagraph.WriteString(line)

			paragraph := strings.TrimSpace(currentParagraph.String())
			if len(paragraph) > 30 {
				cleanLines = append(cleanLines, paragraph)
			}
			currentParagraph.Reset()
		} else {
			if currentParagraph.Len() > 0 {
				currentParagraph.WriteString(" ")
			}
			currentParagraph.WriteString(line)
		}
	}

	// Save last paragraph
	if currentParagraph.Len() > 0 {
		paragraph := strings.TrimSpace(currentParagraph.String())
		if len(paragraph) > 30 {
			cleanLines = append(cleanLines, paragraph)
		}
	}

	resultText := strings.Join(cleanLines, "\n\n")

	// Final clean
	for strings.Contains(resultText, "  ") {
		resultText = strings.ReplaceAll(resultText, "  ", " ")
	}
	for strings.Contains(resultText, "\n\n\n") {
		resultText = strings.ReplaceAll(resultText, "\n\n\n", "\n\n")
	}

	resultText = strings.TrimSpace(resultText)

	// Limit length, keep full paragraphs
	if len(resultText) > 1800 {
		paragraphs := strings.Split(resultText, "\n\n")
		var selectedParagraphs []string
		totalLength := 0

		for _, paragraph := range paragraphs {
			if totalLength+len(paragraph) < 1600 {
				selectedParagraphs = append(selectedParagraphs, paragraph)
				totalLength += len(paragraph) + 2
			} else {
				break
			}
		}

		if len(selectedParagraphs) > 0 {
			resultText = strings.Join(selectedParagraphs, "\n\n")
		}
	}

	return resultText
}
