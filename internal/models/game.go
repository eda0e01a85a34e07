package models

// Game игра, для которой доступна страница предсказаний.
type Game struct {
	GameID   int    `json:"gameId"`
	GameName string `json:"gameName"`
}

// Games каталог доступных игр.
var Games = []Game{
	{GameID: 1, GameName: "Teen-Pati 20-20"},
	{GameID: 2, GameName: "Poker"},
}

// FindGame ищет игру в каталоге по идентификатору.
func FindGame(id int) (Game, bool) {
	for _, g := range Games {
		if g.GameID == id {
			return g, true
		}
	}
	return Game{}, false
}
