package main

import "telegram-quiz-bot/internal/app"

func main() {
	app.Main()
}
