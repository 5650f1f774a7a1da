package partition

//go:generate mockgen -source=./manager.go -destination=../mocks/mock_partition_manager.go -package=mocks ManagerIface
