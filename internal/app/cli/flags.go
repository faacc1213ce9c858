package cli

// resolveInt はフラグ値が正ならそれを、そうでなければ設定値を返す
func resolveInt(flagValue, configValue int) int {
	if flagValue > 0 {
		return flagValue
	}
	return configValue
}

// resolveBool はフラグが明示的に指定された場合のみ設定値を上書きする
func resolveBool(flagSet, flagValue, configValue bool) bool {
	if flagSet {
		return flagValue
	}
	return configValue
}

// clampMaxResults は検索結果数の要求値をこの層の上限へクランプする
// 0以下は設定値へフォールバックし、戻り値の第2値はクランプの有無を表す
func clampMaxResults(requested, configDefault int) (int, bool) {
	maxResults := requested
	if maxResults <= 0 {
		maxResults = configDefault
	}

	if maxResults > MaxSearchResults {
		return MaxSearchResults, true
	}
	return maxResults, false
}
