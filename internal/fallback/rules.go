package fallback

import (
	"slices"
	"strings"
)

// topicRule adds topics when any of its keywords is a substring of the
// lowered input.
type topicRule struct {
	keywords []string
	topics   []string
}

func (r topicRule) matches(s string) bool {
	return slices.ContainsFunc(r.keywords, func(k string) bool { return strings.Contains(s, k) })
}

// fieldRules are tried in order and the first match wins. "java" precedes
// "javascript", so a JavaScript field gets the Java list.
var fieldRules = []topicRule{
	{keywords: []string{"python"}, topics: []string{
		"Python syntax", "Python data types", "loops and conditionals",
		"functions and modules", "exception handling", "working with files",
		"numpy", "pandas", "matplotlib", "OOP in Python",
		"list comprehension", "generators", "decorators", "lambda functions",
		"regular expressions", "virtual environments", "pip",
	}},
	{keywords: []string{"java"}, topics: []string{
		"Java syntax", "Java data types", "control structures",
		"OOP in Java", "interfaces and abstract classes", "collection framework",
		"exception handling", "multithreading", "generics", "annotations",
		"stream API", "lambda expressions", "JavaFX", "JDBC", "Servlet",
	}},
	{keywords: []string{"javascript", "js"}, topics: []string{
		"JavaScript syntax", "DOM manipulation", "event handling",
		"ES6 features", "promises", "async/await", "callbacks",
		"closures", "scope", "hoisting", "prototypes", "JSON",
		"localStorage", "sessionStorage", "AJAX", "fetch API",
	}},
	{keywords: []string{"web"}, topics: []string{
		"HTML", "CSS", "JavaScript", "responsive design", "CSS frameworks",
		"frontend frameworks", "backend development", "REST API",
		"authentication", "database design", "web security",
	}},
	{keywords: []string{"data"}, topics: []string{
		"SQL", "NoSQL", "data cleaning", "data visualization",
		"statistical analysis", "machine learning", "big data",
		"data pipelines", "ETL", "data warehousing", "BI tools",
	}},
	{keywords: []string{"mobile"}, topics: []string{
		"native development", "cross-platform development", "UI/UX design",
		"state management", "API integration", "local storage",
		"push notifications", "app deployment", "responsive design",
	}},
}

// interestRules are tried in order for each interest; the first match wins.
var interestRules = []topicRule{
	{keywords: []string{"web"}, topics: []string{"React", "Vue.js", "Angular", "Node.js", "Express", "Django", "Laravel"}},
	{keywords: []string{"data"}, topics: []string{"data analysis", "machine learning", "deep learning", "data visualization", "pandas", "scikit-learn"}},
	{keywords: []string{"automation"}, topics: []string{"process automation", "CI/CD", "scripting", "test automation", "RPA"}},
	{keywords: []string{"game"}, topics: []string{"game engines", "game design", "game programming", "3D modeling", "game physics"}},
}

var genericTopics = []string{
	"data structures", "algorithms", "object-oriented programming",
	"software design", "project management", "application architecture",
	"code optimization", "software testing", "agile methodology",
}

// Topics returns the study topics for a field and interests: field topics,
// then interest topics, then generic programming topics, without
// duplicates.
func Topics(field string, interests []string) []string {
	var out []string
	f := strings.ToLower(field)
	for _, r := range fieldRules {
		if r.matches(f) {
			out = append(out, r.topics...)
			break
		}
	}
	for _, interest := range interests {
		in := strings.ToLower(interest)
		for _, r := range interestRules {
			if r.matches(in) {
				out = append(out, r.topics...)
				break
			}
		}
	}
	out = append(out, genericTopics...)
	return dedupe(out)
}

func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := items[:0:0]
	for _, it := range items {
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	return out
}

// levelRule matches a level by exact lowered alias.
type levelRule struct {
	aliases []string
	tasks   func(field string) []string
}

var levelRules = []levelRule{
	{
		aliases: []string{"beginner", "cơ bản", "basic", "beginer", "newbie"},
		tasks: func(f string) []string {
			return []string{
				"setting up a development environment for " + f,
				"basic syntax exercises in " + f,
				"getting familiar with an IDE or editor for " + f,
				"solving basic " + f + " exercises",
				"a simple mini-project in " + f,
				"reading introductory material on " + f,
				"watching tutorial videos on " + f,
				"exercises on simple data structures",
				"writing simple object-oriented code",
				"debugging basic errors",
				"taking notes and summarizing what you learned",
				"publishing your code on GitHub",
			}
		},
	},
	{
		aliases: []string{"intermediate", "trung cấp", "trung bình"},
		tasks: func(f string) []string {
			return []string{
				"applying design patterns in " + f,
				"optimizing " + f + " code",
				"writing tests for " + f + " code",
				"exploring a popular " + f + " framework",
				"reading open-source " + f + " code",
				"joining a team project in " + f,
				"building a REST API for a " + f + " application",
				"separating application components",
				"deploying an application to the cloud",
				"integrating a third-party API",
				"designing an efficient database",
				"studying security best practices",
			}
		},
	},
}

func advancedTasks(f string) []string {
	return []string{
		"designing a complex architecture for a " + f + " application",
		"building microservices for " + f,
		"tuning the performance of a " + f + " application",
		"building a framework or library for " + f,
		"writing a technical blog post about " + f,
		"contributing to an open-source " + f + " project",
		"setting up a CI/CD pipeline",
		"running a security audit",
		"building a high-performance system",
		"evaluating and improving UX/UI",
		"designing and deploying a distributed system",
		"researching new techniques for " + f,
	}
}

// LevelTasks returns practice tasks for a level. Unrecognized levels are
// treated as advanced.
func LevelTasks(level, field string) []string {
	l := strings.ToLower(strings.TrimSpace(level))
	for _, r := range levelRules {
		if slices.Contains(r.aliases, l) {
			return r.tasks(field)
		}
	}
	return advancedTasks(field)
}
