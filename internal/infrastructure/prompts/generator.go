package prompts

import (
	"bytes"
	"sort"
	"text/template"

	"browser-pilot/internal/domain/entity"
)

type ToolInfo struct {
	Name        string
	Description string
}

type SystemPromptData struct {
	Range int
	Tools []ToolInfo
}

type ObservePromptData struct {
	Instruction string
	Elements    []entity.UIElement
	DOM         string
}

func GenerateSystemPrompt(baseTemplate string, coordRange int, tools []entity.ToolDefinition) (string, error) {
	infos := make([]ToolInfo, 0, len(tools))
	for _, t := range tools {
		infos = append(infos, ToolInfo{Name: t.Name, Description: t.Description})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})

	return render("system", baseTemplate, SystemPromptData{Range: coordRange, Tools: infos})
}

func GenerateObservePrompt(baseTemplate string, data ObservePromptData) (string, error) {
	return render("observe", baseTemplate, data)
}

func render(name, baseTemplate string, data any) (string, error) {
	tmpl, err := template.New(name).Parse(baseTemplate)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}
