package common

const (
	// API_IMPORTS is used to list or create import jobs
	API_IMPORTS = "/api/v1/imports"

	// API_IMPORT reports a job's status
	API_IMPORT = "/api/v1/imports/{id}"

	// API_CONTROL pauses, resumes or stops a job
	API_CONTROL = "/api/v1/imports/{id}/{action}"

	// API_POKE runs a job's next step now
	API_POKE = "/api/v1/imports/{id}/poke"

	// API_GALLERY deletes a gallery
	API_GALLERY = "/api/v1/galleries/{id}"

	// API_EXTERNAL looks up a gallery by external id
	API_EXTERNAL = "/api/v1/galleries/external/{nid}"

	// API_NOTIFICATIONS returns & clears the caller's notifications
	API_NOTIFICATIONS = "/api/v1/notifications"

	// API_LOG serves a job's log file ({job id}.log) to those who may see the job
	API_LOG = "/logs/{name}"

	API_HEALTH = "/healthz"

	HEADER_USER = "X-User-ID"
	HEADER_ROLE = "X-User-Role"
	ROLE_ADMIN  = "admin"
)
