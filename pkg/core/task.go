// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package core

import "strings"

// TaskName identifies one of the pipeline's fixed tasks.
type TaskName string

const (
	TaskAnalyseDocument TaskName = "analyse_document"
	TaskCreateSummary   TaskName = "create_summary"
)

// Tasks lists every task the pipeline references, in execution order.
var Tasks = []TaskName{TaskAnalyseDocument, TaskCreateSummary}

// DocumentPlaceholder is replaced by the document text when a task is rendered.
const DocumentPlaceholder = "{doc}"

// documentHeading introduces the document when a template has no placeholder.
const documentHeading = "DOCUMENT TO ANALYSE:"

// AssignedRole returns the role that executes the task.
func (n TaskName) AssignedRole() RoleName {
	switch n {
	case TaskAnalyseDocument:
		return RoleDocumentAnalyst
	case TaskCreateSummary:
		return RoleSummaryWriter
	default:
		return ""
	}
}

// TaskSpec is a unit of work loaded from configuration. It is immutable.
type TaskSpec struct {
	Name                TaskName
	DescriptionTemplate string
	ExpectedOutput      string
}

// RenderedTask is a TaskSpec whose description is ready for execution.
type RenderedTask struct {
	Name           TaskName
	Description    string
	ExpectedOutput string
	AssignedRole   RoleName
}

// Render substitutes document into the description template. Templates
// without the placeholder get the document appended under a heading.
func (t TaskSpec) Render(document string) RenderedTask {
	desc := t.DescriptionTemplate
	if strings.Contains(desc, DocumentPlaceholder) {
		desc = strings.ReplaceAll(desc, DocumentPlaceholder, document)
	} else {
		desc = strings.TrimRight(desc, "\n") + "\n\n" + documentHeading + "\n" + document
	}
	return RenderedTask{
		Name:           t.Name,
		Description:    desc,
		ExpectedOutput: t.ExpectedOutput,
		AssignedRole:   t.Name.AssignedRole(),
	}
}

// RenderStatic returns the task with its description unchanged.
func (t TaskSpec) RenderStatic() RenderedTask {
	return RenderedTask{
		Name:           t.Name,
		Description:    t.DescriptionTemplate,
		ExpectedOutput: t.ExpectedOutput,
		AssignedRole:   t.Name.AssignedRole(),
	}
}
