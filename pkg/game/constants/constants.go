package constants

const (
	// ImposterRoomsCollection holds deduction game rooms
	ImposterRoomsCollection = "imposterRooms"
	// BingoRoomsCollection holds shared-card game rooms
	BingoRoomsCollection = "bingoRooms"
	// QuizRoomsCollection holds trivia game rooms
	QuizRoomsCollection = "quizRooms"
	// WordSetsCollection holds admin-managed word pair sets
	WordSetsCollection = "wordSets"

	ImposterMinPlayers = 3
	BingoMinPlayers    = 1
	QuizMinPlayers     = 1

	// ImposterLastAliveCount is the number of living players at which a surviving imposter wins
	ImposterLastAliveCount = 2
	// ImposterMinWordPairs is the number of valid pairs a word set needs to be used
	ImposterMinWordPairs = 2

	// BingoGridSize is the width and height of a card
	BingoGridSize = 5
	// BingoColumnRange is the count of numbers each column draws from
	BingoColumnRange = 15
	// BingoMaxNumber is the highest number that can be drawn
	BingoMaxNumber = BingoGridSize * BingoColumnRange
	// BingoFree marks the center cell
	BingoFree = "FREE"

	// QuizQuestionsPerGame is the number of questions fixed at game start
	QuizQuestionsPerGame = 5
	// QuizOptionsPerQuestion is the number of answer options per question
	QuizOptionsPerQuestion = 4
)
