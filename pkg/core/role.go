// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package core

// RoleName identifies one of the pipeline's fixed roles.
type RoleName string

const (
	RoleDocumentAnalyst RoleName = "document_analyst"
	RoleSummaryWriter   RoleName = "summary_writer"
)

// Roles lists every role the pipeline references, in execution order.
var Roles = []RoleName{RoleDocumentAnalyst, RoleSummaryWriter}

// DefaultMaxIterations is used when a role does not set max_iter.
const DefaultMaxIterations = 3

// RoleSpec captures the persona of one actor. It is immutable once loaded.
type RoleSpec struct {
	Name          RoleName
	Role          string
	Goal          string
	Backstory     string
	MaxIterations int
	Verbose       bool
}
