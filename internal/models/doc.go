// Package models defines domain entities and persistence interfaces for the perc analysis client.
//
// The package contains two categories of types:
//
// 1. Data Transfer Objects (DTOs): structs mirroring the analysis backend's JSON contract
//   - [User], [AuthResponse] : Authenticated account and login/register payloads
//   - [Analysis] : An analysis job with its [Progress] and [Results]
//   - [DetailedReport] : Scored report produced for a finished analysis
//   - [Profile], [SystemHealth], [PerformanceMetrics], [SystemInfo], [JobStatus] : v1 API resources
//
// 2. Persistent Entities: Database-backed models with full lifecycle management
//   - [AnalysisRecord] : Local snapshot of an analysis as last seen by the poller
//
// All persistent entities implement the Model interface providing ID generation, timestamps, validation, and soft delete support.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
