package tools

// RegisterAll installs every memory operation into the registry
func (s *Service) RegisterAll(reg *Registry) error {
	defs := []Definition{
		{
			Name:        "search_context",
			Description: "Search stored memory by semantic similarity, optionally filtered to one entry type",
			Parameters: []Parameter{
				{Name: "query", Type: "string", Description: "Natural-language search query", Required: true},
				{Name: "limit", Type: "integer", Description: "Maximum number of results", Default: defaultSearchLimit},
				{Name: "type", Type: "string", Description: "Restrict results to one entry type (conversation, decision, code, task, document)"},
			},
			Handler: s.searchContext,
		},
		{
			Name:        "get_project_summary",
			Description: "Per-type entry counts and the most recent conversations and decisions for a project",
			Parameters: []Parameter{
				{Name: "projectPath", Type: "string", Description: "Absolute project path", Required: true},
			},
			Handler: s.getProjectSummary,
		},
		{
			Name:        "store_decision",
			Description: "Record an architectural or product decision",
			Parameters: []Parameter{
				{Name: "title", Type: "string", Description: "Short decision title", Required: true},
				{Name: "content", Type: "string", Description: "Decision body and rationale", Required: true},
				{Name: "tags", Type: "array", Description: "Free-form tags"},
				{Name: "projectPath", Type: "string", Description: "Project the decision belongs to"},
			},
			Handler: s.storeDecision,
		},
		{
			Name:        "get_related_conversations",
			Description: "Find past conversations related to a topic",
			Parameters: []Parameter{
				{Name: "topic", Type: "string", Description: "Topic to search for", Required: true},
				{Name: "limit", Type: "integer", Description: "Maximum number of results", Default: defaultSearchLimit},
			},
			Handler: s.getRelatedConversations,
		},
		{
			Name:        "index_project",
			Description: "Index all transcript files of a project into memory",
			Parameters: []Parameter{
				{Name: "projectPath", Type: "string", Description: "Absolute project path", Required: true},
				{Name: "force", Type: "boolean", Description: "Re-index files already seen this process", Default: false},
			},
			Handler: s.indexProject,
		},
		{
			Name:        "start_watching",
			Description: "Watch a project's transcript directory and index new or changed files automatically",
			Parameters: []Parameter{
				{Name: "projectPath", Type: "string", Description: "Absolute project path", Required: true},
			},
			Handler: s.startWatching,
		},
		{
			Name:        "stop_watching",
			Description: "Stop the active transcript watch, if any",
			Handler:     s.stopWatching,
		},
		{
			Name:        "get_memory_status",
			Description: "Global entry counts, indexed projects and the index storage location",
			Handler:     s.getMemoryStatus,
		},
		{
			Name:        "list_tasks",
			Description: "List stored tasks, optionally filtered by project or status",
			Parameters: []Parameter{
				{Name: "projectPath", Type: "string", Description: "Restrict to one project"},
				{Name: "status", Type: "string", Description: "Restrict to one status (pending, in_progress, completed)"},
			},
			Handler: s.listTasks,
		},
		{
			Name:        "create_task",
			Description: "Create a new task entry",
			Parameters: []Parameter{
				{Name: "title", Type: "string", Description: "Short task title", Required: true},
				{Name: "content", Type: "string", Description: "Task details", Required: true},
				{Name: "priority", Type: "string", Description: "Task priority (low, medium, high)"},
				{Name: "tags", Type: "array", Description: "Free-form tags"},
				{Name: "projectPath", Type: "string", Description: "Project the task belongs to"},
			},
			Handler: s.createTask,
		},
		{
			Name:        "update_task_status",
			Description: "Change the status of an existing task",
			Parameters: []Parameter{
				{Name: "taskId", Type: "string", Description: "Task id", Required: true},
				{Name: "status", Type: "string", Description: "New status (pending, in_progress, completed)", Required: true},
			},
			Handler: s.updateTaskStatus,
		},
		{
			Name:        "delete_task",
			Description: "Delete a task by id",
			Parameters: []Parameter{
				{Name: "taskId", Type: "string", Description: "Task id", Required: true},
			},
			Handler: s.deleteTask,
		},
		{
			Name:        "list_documents",
			Description: "List stored documents, optionally filtered by project or tags",
			Parameters: []Parameter{
				{Name: "projectPath", Type: "string", Description: "Restrict to one project"},
				{Name: "tags", Type: "array", Description: "Documents must carry every listed tag"},
			},
			Handler: s.listDocuments,
		},
		{
			Name:        "store_document",
			Description: "Store a reference document",
			Parameters: []Parameter{
				{Name: "title", Type: "string", Description: "Document title", Required: true},
				{Name: "content", Type: "string", Description: "Document body", Required: true},
				{Name: "tags", Type: "array", Description: "Free-form tags"},
				{Name: "projectPath", Type: "string", Description: "Project the document belongs to"},
			},
			Handler: s.storeDocument,
		},
		{
			Name:        "get_document",
			Description: "Fetch a stored document by id",
			Parameters: []Parameter{
				{Name: "docId", Type: "string", Description: "Document id", Required: true},
			},
			Handler: s.getDocument,
		},
		{
			Name:        "delete_document",
			Description: "Delete a document by id",
			Parameters: []Parameter{
				{Name: "docId", Type: "string", Description: "Document id", Required: true},
			},
			Handler: s.deleteDocument,
		},
		{
			Name:        "store_code_snippet",
			Description: "Store a code snippet with an optional source file path",
			Parameters: []Parameter{
				{Name: "title", Type: "string", Description: "Snippet title", Required: true},
				{Name: "content", Type: "string", Description: "Snippet source", Required: true},
				{Name: "filePath", Type: "string", Description: "File the snippet came from"},
				{Name: "tags", Type: "array", Description: "Free-form tags"},
				{Name: "projectPath", Type: "string", Description: "Project the snippet belongs to"},
			},
			Handler: s.storeCodeSnippet,
		},
	}

	for _, def := range defs {
		if err := reg.Register(def); err != nil {
			return err
		}
	}
	return nil
}
