package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/kart-io/version"

	"github.com/kart-io/docqa/pkg/utils/response"
)

// VersionResponse represents the version endpoint response.
type VersionResponse struct {
	ServiceName  string `json:"service_name,omitempty"`
	GitVersion   string `json:"git_version"`
	GitCommit    string `json:"git_commit,omitempty"`
	GitBranch    string `json:"git_branch,omitempty"`
	GitTreeState string `json:"git_tree_state,omitempty"`
	BuildDate    string `json:"build_date,omitempty"`
	GoVersion    string `json:"go_version,omitempty"`
	Compiler     string `json:"compiler,omitempty"`
	Platform     string `json:"platform,omitempty"`
}

// Version returns a handler reporting the build version.
func Version() gin.HandlerFunc {
	return func(c *gin.Context) {
		info := version.Get()
		response.OK(c, VersionResponse{
			ServiceName:  info.ServiceName,
			GitVersion:   info.GitVersion,
			GitCommit:    info.GitCommit,
			GitBranch:    info.GitBranch,
			GitTreeState: info.GitTreeState,
			BuildDate:    info.BuildDate,
			GoVersion:    info.GoVersion,
			Compiler:     info.Compiler,
			Platform:     info.Platform,
		})
	}
}
