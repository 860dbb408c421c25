package consts

// Component names for valuetrack project.
const (
	COMP_SESSION_MANAGER = "source_session_manager"

	COMP_DAO_MARKET_QUOTE = "dao_market_quote"
	COMP_DAO_HIST_BAR     = "dao_hist_bar"
	COMP_DAO_DIVIDEND     = "dao_dividend_event"
	COMP_DAO_ANALYSIS     = "dao_analysis_result"
	COMP_DAO_WATCHLIST    = "dao_watchlist"

	COMP_SVC_MARKET_SYNC  = "market_sync_service"
	COMP_SVC_HISTORY_SYNC = "history_sync_service"
	COMP_SVC_FINANCIAL    = "financial_service"
	COMP_SVC_ANALYSIS     = "analysis_service"
	COMP_SVC_WATCHLIST    = "watchlist_service"

	COMP_SCHEDULER = "scheduler_engine"

	COMP_CTRL_MARKET    = "market_ctrl"
	COMP_CTRL_ANALYSIS  = "analysis_ctrl"
	COMP_CTRL_WATCHLIST = "watchlist_ctrl"
)
