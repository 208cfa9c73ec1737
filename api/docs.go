package api

// @title langaccessor API
// @version v1.0.0
// @description Manages per-domain Accept-Language settings and the header rules installed in the local rewriting proxy.

// @license.name MIT

// @host localhost:8788
// @BasePath /api
// @schemes http
