// Package repository contains data access layer abstractions.
// Implementations live in subpackages (e.g., postgres) inside this directory.
package repository

import (
	sq "github.com/Masterminds/squirrel"
)

// SqBuilder is the statement builder shared by SQL implementations. PostgreSQL
// expects $n placeholders.
var SqBuilder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
