package store

import "fmt"

// schemaStatements returns the DDL for every owned table, in dependency
// order. Foreign keys cascade on delete except
// crawl_discovered_urls.document_id, which is set to NULL so discovery
// history survives document deletion.
func schemaStatements(dimensions int) []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS notebooks (
			id CHAR(32) PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS documents (
			id CHAR(32) PRIMARY KEY,
			notebook_id CHAR(32) NOT NULL REFERENCES notebooks(id) ON DELETE CASCADE,
			url TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			error_message TEXT NOT NULL DEFAULT '',
			content_hash TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			UNIQUE (notebook_id, url)
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunks (
			id CHAR(32) PRIMARY KEY,
			document_id CHAR(32) NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			content TEXT NOT NULL,
			char_start INTEGER NOT NULL,
			char_end INTEGER NOT NULL,
			chunk_index INTEGER NOT NULL,
			token_count INTEGER NOT NULL,
			embedding vector(%d),
			created_at TIMESTAMPTZ NOT NULL
		)`, dimensions),
		`CREATE INDEX IF NOT EXISTS chunks_document_id_idx ON chunks (document_id)`,
		`CREATE INDEX IF NOT EXISTS chunks_embedding_idx ON chunks
			USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)`,
		`CREATE TABLE IF NOT EXISTS conversations (
			id CHAR(32) PRIMARY KEY,
			notebook_id CHAR(32) NOT NULL REFERENCES notebooks(id) ON DELETE CASCADE,
			title TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id CHAR(32) PRIMARY KEY,
			conversation_id CHAR(32) NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS crawl_jobs (
			id CHAR(32) PRIMARY KEY,
			notebook_id CHAR(32) NOT NULL REFERENCES notebooks(id) ON DELETE CASCADE,
			seed_url TEXT NOT NULL,
			domain TEXT NOT NULL,
			max_depth INTEGER NOT NULL,
			max_pages INTEGER NOT NULL,
			url_include_pattern TEXT NOT NULL DEFAULT '',
			url_exclude_pattern TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			total_discovered INTEGER NOT NULL DEFAULT 0,
			total_ingested INTEGER NOT NULL DEFAULT 0,
			error_message TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS crawl_discovered_urls (
			id CHAR(32) PRIMARY KEY,
			crawl_job_id CHAR(32) NOT NULL REFERENCES crawl_jobs(id) ON DELETE CASCADE,
			url TEXT NOT NULL,
			depth INTEGER NOT NULL,
			status TEXT NOT NULL,
			document_id CHAR(32) REFERENCES documents(id) ON DELETE SET NULL,
			created_at TIMESTAMPTZ NOT NULL,
			UNIQUE (crawl_job_id, url)
		)`,
		`CREATE TABLE IF NOT EXISTS evaluation_datasets (
			id CHAR(32) PRIMARY KEY,
			notebook_id CHAR(32) NOT NULL REFERENCES notebooks(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			status TEXT NOT NULL,
			questions_per_chunk INTEGER NOT NULL,
			max_chunks_sample INTEGER NOT NULL,
			error_message TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS evaluation_test_cases (
			id CHAR(32) PRIMARY KEY,
			dataset_id CHAR(32) NOT NULL REFERENCES evaluation_datasets(id) ON DELETE CASCADE,
			question TEXT NOT NULL,
			ground_truth_chunk_ids TEXT[] NOT NULL,
			source_chunk_id CHAR(32) NOT NULL,
			difficulty TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS evaluation_runs (
			id CHAR(32) PRIMARY KEY,
			dataset_id CHAR(32) NOT NULL REFERENCES evaluation_datasets(id) ON DELETE CASCADE,
			status TEXT NOT NULL,
			k INTEGER NOT NULL,
			evaluation_type TEXT NOT NULL,
			avg_precision DOUBLE PRECISION NOT NULL DEFAULT 0,
			avg_recall DOUBLE PRECISION NOT NULL DEFAULT 0,
			avg_hit_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
			avg_mrr DOUBLE PRECISION NOT NULL DEFAULT 0,
			avg_ndcg DOUBLE PRECISION NOT NULL DEFAULT 0,
			avg_map DOUBLE PRECISION NOT NULL DEFAULT 0,
			avg_faithfulness DOUBLE PRECISION NOT NULL DEFAULT 0,
			avg_answer_relevancy DOUBLE PRECISION NOT NULL DEFAULT 0,
			avg_citation_precision DOUBLE PRECISION NOT NULL DEFAULT 0,
			avg_citation_recall DOUBLE PRECISION NOT NULL DEFAULT 0,
			hallucination_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
			error_message TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS evaluation_test_case_results (
			id CHAR(32) PRIMARY KEY,
			run_id CHAR(32) NOT NULL REFERENCES evaluation_runs(id) ON DELETE CASCADE,
			test_case_id CHAR(32) NOT NULL REFERENCES evaluation_test_cases(id) ON DELETE CASCADE,
			retrieved_ids TEXT[] NOT NULL,
			retrieved_scores DOUBLE PRECISION[] NOT NULL,
			precision_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			recall DOUBLE PRECISION NOT NULL DEFAULT 0,
			hit BOOLEAN NOT NULL DEFAULT FALSE,
			reciprocal_rank DOUBLE PRECISION NOT NULL DEFAULT 0,
			ndcg DOUBLE PRECISION NOT NULL DEFAULT 0,
			map_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			generated_answer TEXT NOT NULL DEFAULT '',
			faithfulness DOUBLE PRECISION NOT NULL DEFAULT 0,
			answer_relevancy DOUBLE PRECISION NOT NULL DEFAULT 0,
			citation_precision DOUBLE PRECISION NOT NULL DEFAULT 0,
			citation_recall DOUBLE PRECISION NOT NULL DEFAULT 0,
			claims JSONB,
			created_at TIMESTAMPTZ NOT NULL
		)`,
	}
}
