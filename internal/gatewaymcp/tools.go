package gatewaymcp

// registerTools wires every tool group onto the underlying MCP server,
// fanning out to one register<Group>Tools call per tool_*.go file.
func (s *Server) registerTools() {
	s.registerHTTPTools()
	s.registerTargetTools()
	s.registerContextTools()
	s.registerMissionTools()
	s.registerSearchTools()
	s.registerLibraryTools()
	s.registerNoteTools()
}
