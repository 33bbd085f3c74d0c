package api

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	xerrors "NoccStacks-Crew/internal/errors"
	"NoccStacks-Crew/internal/run"
)

func (s *Server) submitRun(c *gin.Context) {
	if s.runs == nil {
		writeError(c, xerrors.New(xerrors.CodeInitializationFailure, "run 服务未启用"))
		return
	}
	var req run.KickoffRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && err != io.EOF {
			writeError(c, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "请求体解析失败"))
			return
		}
	}
	submitted, err := s.runs.Submit(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, submitted)
}

func (s *Server) getRun(c *gin.Context) {
	if s.runs == nil {
		writeError(c, xerrors.New(xerrors.CodeInitializationFailure, "run 服务未启用"))
		return
	}
	r, err := s.runs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (s *Server) listRuns(c *gin.Context) {
	if s.runs == nil {
		writeError(c, xerrors.New(xerrors.CodeInitializationFailure, "run 服务未启用"))
		return
	}
	opts, err := parseListOptions(c)
	if err != nil {
		writeError(c, err)
		return
	}
	runs, err := s.runs.List(c.Request.Context(), opts...)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}

func (s *Server) runStats(c *gin.Context) {
	if s.runs == nil {
		writeError(c, xerrors.New(xerrors.CodeInitializationFailure, "run 服务未启用"))
		return
	}
	opts, err := parseListOptions(c)
	if err != nil {
		writeError(c, err)
		return
	}
	stats, err := s.runs.Stats(c.Request.Context(), opts...)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) listTools(c *gin.Context) {
	if s.tools == nil {
		writeError(c, xerrors.New(xerrors.CodeInitializationFailure, "工具注册表未初始化"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"tools": s.tools.Descriptors()})
}

func (s *Server) invokeTool(c *gin.Context) {
	if s.tools == nil {
		writeError(c, xerrors.New(xerrors.CodeInitializationFailure, "工具注册表未初始化"))
		return
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		writeError(c, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "读取请求体失败"))
		return
	}
	out, err := s.tools.Execute(c.Request.Context(), c.Param("name"), string(body))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(out))
}

// parseListOptions 解析 limit、offset、status、q、order、updated_since、
// updated_until 与 has_result 查询参数。
func parseListOptions(c *gin.Context) ([]run.ListOption, error) {
	var opts []run.ListOption

	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, xerrors.New(xerrors.CodeInvalidArgument, "limit 必须为正整数", xerrors.WithMetadata("limit", raw))
		}
		opts = append(opts, run.WithLimit(n))
	}
	if raw := c.Query("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return nil, xerrors.New(xerrors.CodeInvalidArgument, "offset 必须为非负整数", xerrors.WithMetadata("offset", raw))
		}
		opts = append(opts, run.WithOffset(n))
	}
	if values := c.QueryArray("status"); len(values) > 0 {
		var statuses []run.Status
		for _, value := range values {
			for _, part := range strings.Split(value, ",") {
				status := run.Status(strings.ToLower(strings.TrimSpace(part)))
				if status == "" {
					continue
				}
				if !run.IsValidStatus(status) {
					return nil, xerrors.New(xerrors.CodeInvalidArgument, "未知的 run 状态", xerrors.WithMetadata("status", part))
				}
				statuses = append(statuses, status)
			}
		}
		opts = append(opts, run.WithStatuses(statuses...))
	}
	if q := c.Query("q"); q != "" {
		opts = append(opts, run.WithQuery(q))
	}
	switch strings.ToLower(c.Query("order")) {
	case "", "desc":
	case "asc":
		opts = append(opts, run.WithSortOrder(run.SortByUpdatedAsc))
	default:
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "order 只能为 asc 或 desc")
	}
	for param, build := range map[string]func(time.Time) run.ListOption{
		"updated_since": run.WithUpdatedSince,
		"updated_until": run.WithUpdatedUntil,
	} {
		raw := c.Query(param)
		if raw == "" {
			continue
		}
		ts, err := parseTimestamp(raw)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, param+" 格式无效")
		}
		opts = append(opts, build(ts))
	}
	if raw := c.Query("has_result"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "has_result 必须为布尔值")
		}
		opts = append(opts, run.WithResultPresence(v))
	}
	return opts, nil
}

// parseTimestamp 接受 Unix 秒或 RFC3339。
func parseTimestamp(raw string) (time.Time, error) {
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(secs, 0), nil
	}
	return time.Parse(time.RFC3339, raw)
}
