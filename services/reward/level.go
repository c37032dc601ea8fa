package reward

// Level is exp/perLevel + 1. Negative exp is treated as zero.
func Level(exp, perLevel int64) int64 {
	if perLevel <= 0 {
		perLevel = DefaultExpPerLevel
	}
	if exp < 0 {
		exp = 0
	}
	return exp/perLevel + 1
}

func Progress(exp, perLevel int64) LevelProgress {
	if perLevel <= 0 {
		perLevel = DefaultExpPerLevel
	}
	if exp < 0 {
		exp = 0
	}
	into := exp % perLevel
	return LevelProgress{
		Level:       Level(exp, perLevel),
		Exp:         exp,
		IntoLevel:   into,
		ToNextLevel: perLevel - into,
	}
}
